// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/rydora/internal/auth"
	"github.com/hitoshi/rydora/internal/middleware"
	"github.com/hitoshi/rydora/internal/model"
	"github.com/hitoshi/rydora/internal/upstream"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, envHint, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, envHint, token string)
	Me(ctx context.Context, envHint, bearer string, sess *model.Session) (*auth.MeResult, error)
}

// SessionManager はセッションの生成・保存・破棄のインターフェース。
// session.Managerの部分集合として定義する。
type SessionManager interface {
	New() (*model.Session, error)
	Save(ctx context.Context, w http.ResponseWriter, s *model.Session) error
	Destroy(ctx context.Context, w http.ResponseWriter, id string) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManager
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionManager) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

// userResponse は現在のユーザーのレスポンス。
type userResponse struct {
	User *model.User `json:"user"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// Login はプロバイダーでサインインし、セッションを確立する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// 1. 入力の検証（プロバイダー呼び出し前）
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Email and password are required"))
		return
	}

	// 2. 認証
	envHint := r.Header.Get(upstream.EnvironmentHeader)
	result, err := h.service.Login(r.Context(), envHint, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		case errors.Is(err, auth.ErrUpstreamUnavailable):
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamUnavailableError("sign in"))
		default:
			slog.Error("login failed", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	// 3. セッションIDを再発行してユーザーとトークンを保存
	if old := middleware.SessionFromContext(r.Context()); old != nil {
		if err := h.sessions.Destroy(r.Context(), w, old.ID); err != nil {
			slog.Warn("failed to discard previous session", slog.String("error", err.Error()))
		}
	}
	sess, err := h.sessions.New()
	if err != nil {
		slog.Error("failed to create session", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewSessionStoreError())
		return
	}
	sess.User = result.User
	sess.ProviderToken = result.Token
	sess.Environment = result.Environment
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		slog.Error("failed to save session", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewSessionStoreError())
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   result.Token,
		User:    result.User,
	})
}

// Logout はプロバイダーからサインアウトし、セッションを破棄する。
// プロバイダーの失敗は無視する。ストアの削除に失敗した場合は500を返すがCookieはクリアする。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess.Authenticated() {
		envHint := sess.Environment
		if envHint == "" {
			envHint = r.Header.Get(upstream.EnvironmentHeader)
		}
		h.service.Logout(r.Context(), envHint, sess.ProviderToken)
	}

	if !h.destroy(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// ClearSession はプロバイダーを呼ばずにセッションを破棄する。環境切り替え時に使う。
// POST /api/auth/clear-session
func (h *AuthHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	if !h.destroy(w, r, middleware.SessionFromContext(r.Context())) {
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Session cleared"})
}

// destroy はセッションを破棄する。失敗時は500を書き込みfalseを返す。
func (h *AuthHandler) destroy(w http.ResponseWriter, r *http.Request, sess *model.Session) bool {
	var id string
	if sess != nil {
		id = sess.ID
	}
	if err := h.sessions.Destroy(r.Context(), w, id); err != nil {
		slog.Error("failed to destroy session", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewSessionStoreError())
		return false
	}
	return true
}

// Me は現在のユーザーを返す。
// Bearerトークンがプロバイダーで検証された場合はセッションを更新する。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	envHint := r.Header.Get(upstream.EnvironmentHeader)

	result, err := h.service.Me(r.Context(), envHint, upstream.BearerToken(r.Header), sess)
	if err != nil {
		if !errors.Is(err, auth.ErrNotAuthenticated) {
			slog.Error("failed to resolve current user", slog.String("error", err.Error()))
		}
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	if result.Refreshed {
		h.refresh(w, r, sess, result)
	}

	writeJSON(w, http.StatusOK, userResponse{User: result.User})
}

// refresh は検証済みトークンとユーザーでセッションを上書きする。失敗してもレスポンスには影響しない。
func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request, sess *model.Session, result *auth.MeResult) {
	if sess == nil {
		var err error
		if sess, err = h.sessions.New(); err != nil {
			slog.Error("failed to create session", slog.String("error", err.Error()))
			return
		}
	}
	sess.User = result.User
	sess.ProviderToken = result.Token
	sess.Environment = result.Environment
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		slog.Error("failed to save refreshed session", slog.String("error", err.Error()))
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
