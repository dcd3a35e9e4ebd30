package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/rydora/internal/middleware"
	"github.com/hitoshi/rydora/internal/rydora"
	"github.com/hitoshi/rydora/internal/upstream"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPRecorder      middleware.HTTPRecorder
	SessionLoader     middleware.SessionLoader
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	Sessions    SessionManager

	// プロキシ
	RydoraService RydoraServiceInterface
	OpenData      OpenDataSearcher
	Resolver      *upstream.EnvironmentResolver
	Selector      *upstream.CredentialSelector

	// /metrics のハンドラー（nilの場合は公開しない）
	Metrics http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → CORS → Session → RateLimit(General)
//
// /health と /metrics はセッションとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions)
	proxy := NewRydoraHandler(deps.RydoraService, deps.OpenData, deps.Resolver, deps.Selector)

	// --- 監視用 ---
	r.Get("/health", Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- API ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionLoader))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/auth", func(r chi.Router) {
			// ログインは専用のレート制限を追加
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Post("/clear-session", authHandler.ClearSession)
			r.Get("/me", authHandler.Me)
		})

		r.Route("/api/rydora", func(r chi.Router) {
			// 一覧
			r.Get("/ezpass", proxy.EzPassCharges)
			r.Get("/parking-violations", proxy.ParkingViolations)
			r.Get("/nyc-violations", proxy.NYCViolations)
			r.Get("/tolls", proxy.Tolls)
			r.Get("/pending-payments", proxy.PendingPayments)

			// 違反
			r.Put("/ExternalViolation/update-payment-status", proxy.UpdatePaymentStatus)
			mountResource(r, "/violations", proxy, rydora.Violations, nil, nil)

			// 日次請求書
			mountResource(r, "/invoices", proxy, rydora.Invoices, func(r chi.Router) {
				r.Get("/", proxy.Invoices)
				r.Get("/by-date", proxy.InvoiceByDate)
			}, func(r chi.Router) {
				r.Post("/submit", proxy.SubmitInvoice)
				r.Post("/fail", proxy.FailInvoice)
				r.Post("/send-email", proxy.SendInvoiceEmail)
			})

			// 車両・会社
			mountResource(r, "/cars", proxy, rydora.Cars, func(r chi.Router) {
				r.Get("/", proxy.Cars)
			}, nil)
			mountResource(r, "/companies", proxy, rydora.Companies, func(r chi.Router) {
				r.Get("/", proxy.Companies)
			}, nil)
		})
	})

	return r
}

// mountResource はCRUDのルートを登録する。
// collectionは一覧などのコレクション単位、memberは/{id}配下の追加ルートを登録する。
func mountResource(r chi.Router, pattern string, h *RydoraHandler, res rydora.Resource, collection, member func(r chi.Router)) {
	r.Route(pattern, func(r chi.Router) {
		if collection != nil {
			collection(r)
		}
		r.Post("/", h.CreateResource(res))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetResource(res))
			r.Put("/", h.UpdateResource(res))
			r.Delete("/", h.DeleteResource(res))
			if member != nil {
				member(r)
			}
		})
	})
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health は GET /health を処理する。
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
