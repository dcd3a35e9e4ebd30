package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/rydora/internal/model"
)

// DefaultCookieName はセッションCookieの名前。
const DefaultCookieName = "session_id"

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int // 秒
}

// Manager はStoreとCookieポリシーを束ね、リクエスト単位でセッションを読み書きする。
type Manager struct {
	store  Store
	cookie CookieConfig
	now    func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(store Store, cookie CookieConfig) *Manager {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = 3600
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	return &Manager{store: store, cookie: cookie, now: time.Now}
}

// TTL はセッションの有効期間を返す。
func (m *Manager) TTL() time.Duration {
	return time.Duration(m.cookie.MaxAge) * time.Second
}

// Load はリクエストのCookieからセッションを読み込む。
// Cookieがない、またはセッションが存在しない場合は(nil, nil)を返す。
func (m *Manager) Load(r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(m.cookie.Name)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return m.store.Get(r.Context(), cookie.Value)
}

// New は未保存の空セッションを生成する。
func (m *Manager) New() (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	now := m.now()
	return &model.Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(m.TTL()),
	}, nil
}

// Save はセッションを保存し、Cookieを発行（または有効期限を延長）する。
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *model.Session) error {
	s.ExpiresAt = m.now().Add(m.TTL())
	if err := m.store.Set(ctx, s, m.TTL()); err != nil {
		return err
	}
	http.SetCookie(w, m.newCookie(s.ID, m.cookie.MaxAge))
	return nil
}

// Destroy はセッションを削除し、Cookieをクリアする。
// ストアの削除に失敗してもCookieは必ずクリアする。
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, id string) error {
	http.SetCookie(w, m.newCookie("", -1))
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (m *Manager) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie.Name,
		Value:    value,
		Path:     "/",
		Domain:   m.cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.cookie.SameSite,
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
