package auth

import (
	"strings"

	"github.com/hitoshi/rydora/internal/model"
	"github.com/hitoshi/rydora/internal/normalize"
)

// 役割名
const (
	roleAdmin = "admin"
	roleOwner = "owner"
	roleUser  = "user"
)

// signInResult はサインイン応答から取り出したトークンとユーザー。
type signInResult struct {
	Token string
	User  *model.User
}

// parseSignIn はサインイン応答 {"reason":0,"result":{...}} を解釈する。
// reasonが0でない、resultがない、またはトークンがない場合はfalseを返す。
// ユーザー情報はresult直下またはresult.userのどちらでも受け付ける。
func parseSignIn(body []byte, email string) (*signInResult, bool) {
	payload := normalize.Decode(body)
	if payload.Kind != normalize.KindObject {
		return nil, false
	}
	if reason, ok := payload.Object.Reason(); !ok || reason != 0 {
		return nil, false
	}

	result := payload.Object.Object("result")
	token := result.String("token", "accessToken", "access_token", "jwt")
	if token == "" {
		return nil, false
	}

	profile := result.Object("user", "User", "profile")
	if len(profile) == 0 {
		profile = result
	}
	return &signInResult{Token: token, User: mapUser(profile, email)}, true
}

// parseProfile は"who am I"応答を解釈する。
// {"reason":0,"result":{...}} と素のユーザーオブジェクトのどちらも受け付ける。
func parseProfile(body []byte) (*model.User, bool) {
	payload := normalize.Decode(body)
	if payload.Kind != normalize.KindObject {
		return nil, false
	}

	profile := payload.Object
	if reason, ok := profile.Reason(); ok {
		if reason != 0 {
			return nil, false
		}
		profile = profile.Object("result")
		if nested := profile.Object("user", "User"); len(nested) > 0 {
			profile = nested
		}
	}

	if profile.String("email", "Email") == "" && profile.String("id", "Id", "userId") == "" {
		return nil, false
	}
	return mapUser(profile, ""), true
}

// mapUser はプロバイダーのユーザー表現をセッションに保存するUserへ変換する。
// 欠落した任意項目には安全な既定値を入れる。
func mapUser(r normalize.Record, fallbackEmail string) *model.User {
	email := r.String("email", "Email", "userName")
	if email == "" {
		email = fallbackEmail
	}
	role := strings.ToLower(r.String("role", "Role", "userRole"))
	isAdmin := r.Bool("isAdmin", "IsAdmin") || role == roleAdmin
	isOwner := r.Bool("isOwner", "IsOwner") || role == roleOwner

	id := r.String("id", "Id", "userId", "UserId")
	if id == "" {
		id = email
	}
	firstName := r.String("firstName", "FirstName", "first_name")
	if firstName == "" {
		firstName = "User"
	}

	return &model.User{
		ID:          id,
		Email:       email,
		FirstName:   firstName,
		LastName:    r.String("lastName", "LastName", "last_name"),
		PhoneNumber: r.String("phoneNumber", "PhoneNumber", "phone"),
		CompanyID:   r.String("companyId", "CompanyId", "company_id"),
		CompanyName: r.String("companyName", "CompanyName", "company_name"),
		Role:        roleOf(isAdmin, isOwner, role),
		IsAdmin:     isAdmin,
		IsOwner:     isOwner,
	}
}

func roleOf(isAdmin, isOwner bool, role string) string {
	switch {
	case isAdmin:
		return roleAdmin
	case isOwner:
		return roleOwner
	case role != "":
		return role
	default:
		return roleUser
	}
}
