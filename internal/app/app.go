// Package app はコマンドの解析、依存関係のワイヤリング、サーバーのライフサイクルを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/rydora/internal/auth"
	"github.com/hitoshi/rydora/internal/config"
	"github.com/hitoshi/rydora/internal/database"
	"github.com/hitoshi/rydora/internal/handler"
	"github.com/hitoshi/rydora/internal/logger"
	"github.com/hitoshi/rydora/internal/metrics"
	"github.com/hitoshi/rydora/internal/middleware"
	"github.com/hitoshi/rydora/internal/opendata"
	"github.com/hitoshi/rydora/internal/rydora"
	"github.com/hitoshi/rydora/internal/security"
	"github.com/hitoshi/rydora/internal/session"
	"github.com/hitoshi/rydora/internal/upstream"
)

// shutdownTimeout は処理中のリクエストの完了を待つ最大時間。
// 重い操作のタイムアウト（60s）より長くする。
const shutdownTimeout = 75 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMで実行中のコマンドを停止する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runServe はAPIサーバーモードで起動する。
// セッションストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting application",
		slog.String("app_env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
		slog.String("session_store", cfg.SessionStore),
		slog.Bool("mock_login_enabled", cfg.MockLoginEnabled),
		slog.Bool("static_api_key", cfg.HasAPIKey()),
	)

	// 1. セッションストア
	store, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 2. 期限切れセッションの定期削除
	if purger, ok := store.(session.Purger); ok {
		sweeper := session.NewSweeper(purger, cfg.SessionSweepSchedule, slog.Default())
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start session sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	// 3. ルーターの構築
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	router, limiter, err := buildRouter(cfg, store, registry, slog.Default())
	if err != nil {
		return err
	}
	defer limiter.Stop()

	// 4. HTTPサーバーの起動
	listener, err := listen(ctx, cfg.ServerPort, cfg.PortReclaim)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      shutdownTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// openSessionStore は設定に応じたセッションストアを開く。
// 戻り値の関数でストアの接続を閉じる。
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case "postgres":
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return session.NewPostgresStore(db), func() { db.Close() }, nil

	case "redis":
		client, err := session.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("redis connection established")
		return session.NewRedisStore(client), func() { client.Close() }, nil

	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}

// buildRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 戻り値のRateLimiterはサーバー停止時にStopする。
func buildRouter(cfg *config.Config, store session.Store, registry *prometheus.Registry, log *slog.Logger) (http.Handler, *middleware.RateLimiter, error) {
	// 1. メトリクス
	collector := metrics.NewCollector(registry)

	// 2. プロバイダー呼び出し
	resolver := upstream.NewEnvironmentResolver(upstream.Environments{
		DevelopmentURL: cfg.ProviderURLDevelopment,
		ProductionURL:  cfg.ProviderURLProduction,
		DefaultURL:     cfg.ProviderURLDefault,
	})
	clients := upstream.NewClientFactory(nil, upstream.Timeouts{
		Auth:  cfg.UpstreamTimeouts.Auth,
		Read:  cfg.UpstreamTimeouts.Read,
		Write: cfg.UpstreamTimeouts.Write,
		Heavy: cfg.UpstreamTimeouts.Heavy,
	}, log, collector)
	invoker := upstream.NewFallbackInvoker(log)
	selector := upstream.DefaultCredentialSelector(cfg.ProviderAPIKey, config.APIKeyPlaceholder)

	// 3. 認証
	var local *auth.LocalCredentials
	if cfg.MockLoginEnabled {
		var err error
		local, err = auth.NewLocalCredentials(cfg.LocalUsers, cfg.JWTSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load local credentials: %w", err)
		}
	}
	authService := auth.NewService(resolver, clients, invoker, local, collector, auth.ServiceConfig{
		APIKey:      cfg.ProviderAPIKey,
		Placeholder: config.APIKeyPlaceholder,
	}, log)

	sessions := session.NewManager(store, session.CookieConfig{
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		MaxAge:   cfg.SessionMaxAge,
	})

	// 4. プロキシ
	rydoraService := rydora.NewService(resolver, clients, invoker, security.NewEmailSanitizer(), log)

	if err := security.ValidatePublicURL(cfg.OpenDataURL); err != nil {
		return nil, nil, fmt.Errorf("invalid NYC_OPEN_DATA_URL: %w", err)
	}
	openData := opendata.NewClient(
		security.NewPublicClient(cfg.OpenDataTimeout),
		cfg.OpenDataURL, cfg.OpenDataAppToken, log, collector,
	)

	// 5. ルーター
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		HTTPRecorder:      collector,
		SessionLoader:     sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,

		AuthService: authService,
		Sessions:    sessions,

		RydoraService: rydoraService,
		OpenData:      openData,
		Resolver:      resolver,
		Selector:      selector,

		Metrics: metrics.Handler(registry),
	})

	return router, limiter, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	url := fmt.Sprintf("http://localhost:%s/health", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// Main はコマンドを実行し、失敗した場合は終了コード1でプロセスを終了する。
func Main() {
	if err := Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("rydora exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
