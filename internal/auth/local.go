package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/rydora/internal/config"
	"github.com/hitoshi/rydora/internal/model"
)

const (
	localTokenIssuer = "rydora-local"
	localTokenTTL    = time.Hour
)

// defaultLocalPassword は組み込みの開発用アカウントのパスワード。
const defaultLocalPassword = "password"

// LocalCredentials はプロバイダーに到達できない場合に使う開発用のローカル認証表。
// パスワードはbcryptハッシュで保持し、認証成功時はHS256で署名したトークンを発行する。
type LocalCredentials struct {
	users  map[string]localEntry
	secret []byte
	now    func() time.Time
}

type localEntry struct {
	hash []byte
	user model.User
}

// localClaims はローカル発行トークンのクレーム。
type localClaims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	IsOwner bool   `json:"isOwner"`
	jwt.RegisteredClaims
}

// NewLocalCredentials はLocalCredentialsを生成する。
// usersが空の場合は組み込みの管理者・オーナーアカウントを使う。
func NewLocalCredentials(users []config.LocalUser, secret string) (*LocalCredentials, error) {
	if secret == "" {
		return nil, errors.New("local token secret is required")
	}
	if len(users) == 0 {
		defaults, err := defaultLocalUsers()
		if err != nil {
			return nil, err
		}
		users = defaults
	}

	lc := &LocalCredentials{
		users:  make(map[string]localEntry, len(users)),
		secret: []byte(secret),
		now:    time.Now,
	}
	for i, u := range users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("local user %d: email and passwordHash are required", i)
		}
		lc.users[email] = localEntry{
			hash: []byte(u.PasswordHash),
			user: model.User{
				ID:          "local-" + email,
				Email:       email,
				FirstName:   u.FirstName,
				LastName:    u.LastName,
				CompanyID:   u.CompanyID,
				CompanyName: u.CompanyName,
				Role:        roleOf(u.IsAdmin, u.IsOwner, ""),
				IsAdmin:     u.IsAdmin,
				IsOwner:     u.IsOwner,
			},
		}
	}
	return lc, nil
}

// Authenticate はメールアドレスとパスワードを照合し、ユーザーと署名済みトークンを返す。
// 一致しない場合はErrInvalidCredentialsを返す。
func (l *LocalCredentials) Authenticate(email, password string) (*model.User, string, error) {
	entry, ok := l.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(entry.hash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := l.now()
	claims := localClaims{
		Email:   entry.user.Email,
		IsAdmin: entry.user.IsAdmin,
		IsOwner: entry.user.IsOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localTokenIssuer,
			Subject:   entry.user.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(localTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign local token: %w", err)
	}

	user := entry.user
	return &user, token, nil
}

// defaultLocalUsers は組み込みの開発用アカウントを生成する。
func defaultLocalUsers() ([]config.LocalUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(defaultLocalPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash default password: %w", err)
	}
	return []config.LocalUser{
		{
			Email:        "admin@rydora.com",
			PasswordHash: string(hash),
			FirstName:    "Admin",
			LastName:     "User",
			CompanyID:    "1",
			CompanyName:  "Rydora",
			IsAdmin:      true,
		},
		{
			Email:        "owner@rydora.com",
			PasswordHash: string(hash),
			FirstName:    "Fleet",
			LastName:     "Owner",
			CompanyID:    "2",
			CompanyName:  "Rydora Fleet",
			IsOwner:      true,
		},
	}, nil
}
