// Package model はドメインモデルを定義する。
package model

import "time"

// User はポータルにログインしているユーザーのプロフィールを表す。
// プロバイダーのサインイン結果または "who am I" 応答から生成され、セッションにキャッシュされる。
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName"`
	Role        string `json:"role"`
	IsAdmin     bool   `json:"isAdmin"`
	IsOwner     bool   `json:"isOwner"`
}

// Session はブラウザCookieに紐づくサーバー側セッションを表す。
// ProviderTokenはEnvironmentで選択されたプロバイダー環境が発行（または検証）したトークン。
// 環境を切り替える場合、呼び出し側がセッションをクリアする必要がある。
type Session struct {
	ID            string    `json:"id"`
	User          *User     `json:"user,omitempty"`
	ProviderToken string    `json:"providerToken,omitempty"`
	Environment   string    `json:"environment,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Authenticated はセッションにユーザーが設定されているかを返す。
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil
}
