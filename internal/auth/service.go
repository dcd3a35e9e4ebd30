// Package auth はプロバイダーに対するサインイン、サインアウト、トークン検証を提供する。
// セッションへの保存は呼び出し側（ハンドラー）が行う。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/rydora/internal/metrics"
	"github.com/hitoshi/rydora/internal/model"
	"github.com/hitoshi/rydora/internal/upstream"
)

var (
	// ErrInvalidCredentials は認証情報の不一致、またはプロバイダーが業務エラーを返したことを表す。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated は有効なトークンもセッションもないことを表す。
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUpstreamUnavailable はプロバイダーに到達できず、ローカル認証も無効であることを表す。
	ErrUpstreamUnavailable = errors.New("authentication provider unavailable")
)

// ログイン経路
const (
	SourceUpstream = metrics.LoginUpstream
	SourceFallback = metrics.LoginFallback
)

// プロバイダーの認証系操作
var (
	opSignIn = upstream.Operation{
		Name:        "auth.sign_in",
		Description: "sign in",
		Method:      http.MethodPost,
		Paths:       []string{"/api/Auth/SignIn"},
		Timeout:     upstream.TimeoutAuth,
	}
	opSignOut = upstream.Operation{
		Name:        "auth.sign_out",
		Description: "sign out",
		Method:      http.MethodPost,
		Paths:       []string{"/api/Auth/SignOut"},
		Timeout:     upstream.TimeoutAuth,
	}
	opWhoAmI = upstream.Operation{
		Name:        "auth.who_am_i",
		Description: "validate token",
		Method:      http.MethodGet,
		Paths:       []string{"/api/Auth/me", "/api/Auth/CurrentUser", "/api/User/me"},
		Timeout:     upstream.TimeoutAuth,
	}
)

// LoginRecorder はログイン結果のメトリクス記録先。
type LoginRecorder interface {
	RecordLogin(outcome string)
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token       string
	User        *model.User
	Environment string
	Source      string // SourceUpstream または SourceFallback
}

// MeResult は"who am I"の結果。Refreshedがtrueの場合、呼び出し側はセッションを更新して保存する。
// Environmentは検証に使った環境（Refreshedの場合のみ設定）。
type MeResult struct {
	User        *model.User
	Token       string
	Environment string
	Refreshed   bool
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	APIKey      string // サインイン時にX-API-Keyとして送る静的キー（プレースホルダーは送らない）
	Placeholder string
}

// Service はプロバイダーに対する認証のビジネスロジックを提供する。
type Service struct {
	resolver *upstream.EnvironmentResolver
	clients  *upstream.ClientFactory
	invoker  *upstream.FallbackInvoker
	local    *LocalCredentials // nilの場合ローカル認証は無効
	recorder LoginRecorder
	config   ServiceConfig
	logger   *slog.Logger
}

// NewService はServiceを生成する。localがnilの場合、プロバイダー不達時のローカル認証は行わない。
func NewService(
	resolver *upstream.EnvironmentResolver,
	clients *upstream.ClientFactory,
	invoker *upstream.FallbackInvoker,
	local *LocalCredentials,
	recorder LoginRecorder,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		clients:  clients,
		invoker:  invoker,
		local:    local,
		recorder: recorder,
		config:   config,
		logger:   logger,
	}
}

// Login はプロバイダーでサインインする。
//
//  1. 成功（reason == 0 かつ result あり）→ プロバイダーのトークンとユーザーを返す
//  2. 業務エラーまたは4xx → ErrInvalidCredentials（フォールバックしない）
//  3. 通信エラー・タイムアウト・5xx → ローカル認証が有効ならローカル認証表で照合する
func (s *Service) Login(ctx context.Context, envHint, email, password string) (*LoginResult, error) {
	env := s.resolver.Environment(envHint)
	client := s.clients.ForOperation(s.resolver.Resolve(envHint), opSignIn)

	req := upstream.Request{
		Operation: opSignIn.Name,
		Method:    opSignIn.Method,
		Path:      opSignIn.Path(),
		Body:      map[string]string{"email": email, "password": password},
		Header:    http.Header{},
	}
	if s.config.APIKey != "" && s.config.APIKey != s.config.Placeholder {
		req.Header.Set("X-API-Key", s.config.APIKey)
	}

	resp, err := client.Do(ctx, req)
	if err == nil {
		result, ok := parseSignIn(resp.Body, email)
		if !ok {
			s.record(metrics.LoginRejected)
			s.logger.Warn("sign-in rejected by provider",
				slog.String("environment", env),
			)
			return nil, ErrInvalidCredentials
		}
		s.record(SourceUpstream)
		s.logger.Info("user signed in",
			slog.String("environment", env),
			slog.String("user_id", result.User.ID),
		)
		return &LoginResult{Token: result.Token, User: result.User, Environment: env, Source: SourceUpstream}, nil
	}

	if !upstream.IsUnavailable(err) {
		s.record(metrics.LoginRejected)
		s.logger.Warn("sign-in rejected by provider",
			slog.String("environment", env),
			slog.String("error", err.Error()),
		)
		return nil, ErrInvalidCredentials
	}

	s.logger.Error("sign-in provider unavailable",
		slog.String("environment", env),
		slog.String("error", err.Error()),
		slog.Bool("local_fallback", s.local != nil),
	)
	if s.local == nil {
		s.record(metrics.LoginUnavailable)
		return nil, ErrUpstreamUnavailable
	}

	user, token, err := s.local.Authenticate(email, password)
	if err != nil {
		s.record(metrics.LoginRejected)
		return nil, err
	}
	s.record(SourceFallback)
	s.logger.Warn("user signed in with local credentials",
		slog.String("environment", env),
		slog.String("user_id", user.ID),
	)
	return &LoginResult{Token: token, User: user, Environment: env, Source: SourceFallback}, nil
}

// Logout はプロバイダーのサインアウトをベストエフォートで呼び出す。
// 失敗してもエラーは返さない。ローカルのセッション破棄は呼び出し側が必ず行う。
func (s *Service) Logout(ctx context.Context, envHint, token string) {
	if token == "" {
		return
	}
	client := s.clients.ForOperation(s.resolver.Resolve(envHint), opSignOut)
	_, err := client.Do(ctx, upstream.Request{
		Operation:     opSignOut.Name,
		Method:        opSignOut.Method,
		Path:          opSignOut.Path(),
		Authorization: upstream.Credential{Kind: upstream.CredentialSessionToken, Token: token}.Header(),
	})
	if err != nil {
		s.logger.Warn("provider sign-out failed",
			slog.String("error", err.Error()),
		)
	}
}

// Me は現在のユーザーを返す。
//
//  1. Bearerトークンがセッションのトークンと一致 → セッションのユーザー（プロバイダー呼び出しなし）
//  2. Bearerトークンがあり一致しない → プロバイダーで検証し、成功すればRefreshed
//  3. 検証失敗またはBearerなし → Cookieセッションのユーザー
//  4. いずれもなし → ErrNotAuthenticated
//
// 1と3はセッションの環境がリクエストの環境と一致する場合（または未記録の場合）に限る。
func (s *Service) Me(ctx context.Context, envHint, bearer string, sess *model.Session) (*MeResult, error) {
	current := s.sameEnvironment(sess, envHint)
	if bearer != "" && current && sess.ProviderToken == bearer {
		return &MeResult{User: sess.User, Token: bearer}, nil
	}

	if bearer != "" {
		user, err := s.validate(ctx, envHint, bearer)
		if err == nil {
			return &MeResult{User: user, Token: bearer, Environment: s.resolver.Environment(envHint), Refreshed: true}, nil
		}
		s.logger.Info("bearer token validation failed",
			slog.String("environment", s.resolver.Environment(envHint)),
			slog.String("error", err.Error()),
		)
	}

	if current {
		return &MeResult{User: sess.User, Token: sess.ProviderToken}, nil
	}
	return nil, ErrNotAuthenticated
}

// sameEnvironment はセッションが認証済みで、そのトークンがリクエストの環境で発行されたものかを返す。
func (s *Service) sameEnvironment(sess *model.Session, envHint string) bool {
	if !sess.Authenticated() {
		return false
	}
	return sess.Environment == "" || sess.Environment == s.resolver.Environment(envHint)
}

// validate はプロバイダーの"who am I"でトークンを検証する。
func (s *Service) validate(ctx context.Context, envHint, token string) (*model.User, error) {
	client := s.clients.ForOperation(s.resolver.Resolve(envHint), opWhoAmI)
	resp, err := s.invoker.Get(ctx, client, opWhoAmI.Paths, upstream.Request{
		Operation:     opWhoAmI.Name,
		Authorization: upstream.Credential{Kind: upstream.CredentialClientBearer, Token: token}.Header(),
	})
	if err != nil {
		return nil, err
	}
	user, ok := parseProfile(resp.Body)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(outcome)
	}
}
