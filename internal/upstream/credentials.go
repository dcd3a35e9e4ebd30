package upstream

import (
	"net/http"
	"strings"
)

// CredentialKind はどの情報源から認証情報を得たかを表す。
type CredentialKind string

const (
	CredentialNone         CredentialKind = "none"
	CredentialSessionToken CredentialKind = "session_token"
	CredentialClientBearer CredentialKind = "client_bearer"
	CredentialStaticAPIKey CredentialKind = "static_api_key"
)

const bearerPrefix = "Bearer "

// Credential はプロバイダーへ転送する1つの認証情報。
type Credential struct {
	Kind  CredentialKind
	Token string
}

// Header はAuthorizationヘッダーの値を返す。認証情報がない場合は空文字列。
func (c Credential) Header() string {
	if c.Kind == CredentialNone || c.Token == "" {
		return ""
	}
	return bearerPrefix + c.Token
}

// CredentialInput は認証情報の選択に使うリクエスト単位の入力。
type CredentialInput struct {
	SessionToken string      // セッションに保存されたプロバイダートークン
	Header       http.Header // 受信リクエストのヘッダー
}

// CredentialSource は認証情報の取得戦略。見つからない場合はfalseを返す。
type CredentialSource interface {
	Credential(in CredentialInput) (Credential, bool)
}

// SessionTokenSource はセッションのプロバイダートークンを使う。
type SessionTokenSource struct{}

// Credential はCredentialSourceを実装する。
func (SessionTokenSource) Credential(in CredentialInput) (Credential, bool) {
	if in.SessionToken == "" {
		return Credential{}, false
	}
	return Credential{Kind: CredentialSessionToken, Token: in.SessionToken}, true
}

// ClientBearerSource は受信リクエストのBearerトークンをそのまま転送する。
type ClientBearerSource struct{}

// Credential はCredentialSourceを実装する。
func (ClientBearerSource) Credential(in CredentialInput) (Credential, bool) {
	token := BearerToken(in.Header)
	if token == "" {
		return Credential{}, false
	}
	return Credential{Kind: CredentialClientBearer, Token: token}, true
}

// StaticAPIKeySource は設定済みの静的APIキーを使う。
// 空またはプレースホルダーのままのキーは使わない。
type StaticAPIKeySource struct {
	APIKey      string
	Placeholder string
}

// Credential はCredentialSourceを実装する。
func (s StaticAPIKeySource) Credential(CredentialInput) (Credential, bool) {
	if s.APIKey == "" || s.APIKey == s.Placeholder {
		return Credential{}, false
	}
	return Credential{Kind: CredentialStaticAPIKey, Token: s.APIKey}, true
}

// CredentialSelector は戦略を順に評価し、最初に見つかった認証情報を返す。
type CredentialSelector struct {
	sources []CredentialSource
}

// NewCredentialSelector は指定した順序で評価するCredentialSelectorを生成する。
func NewCredentialSelector(sources ...CredentialSource) *CredentialSelector {
	return &CredentialSelector{sources: sources}
}

// DefaultCredentialSelector はセッショントークン → クライアントBearer → 静的APIキーの順で評価する。
func DefaultCredentialSelector(apiKey, placeholder string) *CredentialSelector {
	return NewCredentialSelector(
		SessionTokenSource{},
		ClientBearerSource{},
		StaticAPIKeySource{APIKey: apiKey, Placeholder: placeholder},
	)
}

// Select は認証情報を選択する。どの戦略にも一致しない場合はKindがCredentialNoneになる。
func (s *CredentialSelector) Select(in CredentialInput) Credential {
	for _, src := range s.sources {
		if cred, ok := src.Credential(in); ok {
			return cred
		}
	}
	return Credential{Kind: CredentialNone}
}

// BearerToken は"Authorization: Bearer <token>"ヘッダーからトークンを取り出す。
func BearerToken(h http.Header) string {
	if h == nil {
		return ""
	}
	v := h.Get("Authorization")
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
