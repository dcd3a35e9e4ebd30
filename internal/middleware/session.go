// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/rydora/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionLoader はリクエストのCookieからセッションを読み込むインターフェース。
// session.Managerの部分集合として定義する。
// Cookieがない、またはセッションが存在しない場合は(nil, nil)を返す。
type SessionLoader interface {
	Load(r *http.Request) (*model.Session, error)
}

// NewSessionMiddleware はCookieのセッションを読み込み、リクエストコンテキストに注入するミドルウェアを返す。
// 認証の要否はハンドラーが判断するため、セッションがなくてもリクエストは拒否しない。
// ストアの読み込みに失敗した場合はログに記録し、セッションなしとして続行する。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := loader.Load(r)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				sess = nil
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			if sess.Authenticated() {
				setLoggedUser(r.Context(), sess.User.ID)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションがない場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// UserIDFromContext は認証済みセッションのユーザーIDを返す。未認証の場合は空文字列。
func UserIDFromContext(ctx context.Context) string {
	if sess := SessionFromContext(ctx); sess.Authenticated() {
		return sess.User.ID
	}
	return ""
}
