package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv はテストに影響する環境変数を空にする。
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RYDORA_CONFIG_FILE", "APP_ENV",
		"PROVIDER_API_URL_DEV", "PROVIDER_API_URL_PROD", "PROVIDER_API_URL", "PROVIDER_API_KEY",
		"SESSION_STORE", "SESSION_MAX_AGE", "DATABASE_URL", "REDIS_URL",
		"MOCK_LOGIN_ENABLED", "JWT_SECRET", "COOKIE_SECURE", "COOKIE_SAMESITE", "COOKIE_DOMAIN",
		"UPSTREAM_TIMEOUT_HEAVY", "SERVER_PORT", "PORT_RECLAIM",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.IsProduction() {
		t.Error("default APP_ENV should not be production")
	}
	if cfg.SessionMaxAge != 3600 {
		t.Errorf("SessionMaxAge = %d, want %d", cfg.SessionMaxAge, 3600)
	}
	if cfg.SessionStore != "memory" {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, "memory")
	}
	if cfg.CookieSameSite != http.SameSiteLaxMode {
		t.Errorf("CookieSameSite = %v, want %v", cfg.CookieSameSite, http.SameSiteLaxMode)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should be false in development")
	}
	if !cfg.MockLoginEnabled {
		t.Error("MockLoginEnabled should default to true in development")
	}
	if cfg.UpstreamTimeouts.Heavy != 60*time.Second {
		t.Errorf("Heavy timeout = %v, want %v", cfg.UpstreamTimeouts.Heavy, 60*time.Second)
	}
	if cfg.HasAPIKey() {
		t.Error("placeholder API key should not count as configured")
	}
	if cfg.ServerPort != "5000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "5000")
	}
}

func TestLoad_ProductionDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PROVIDER_API_URL_PROD", "https://api.rydora.example")
	t.Setenv("JWT_SECRET", "prod-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.CookieSameSite != http.SameSiteNoneMode {
		t.Errorf("CookieSameSite = %v, want %v", cfg.CookieSameSite, http.SameSiteNoneMode)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true in production")
	}
	if cfg.MockLoginEnabled {
		t.Error("MockLoginEnabled should default to false in production")
	}
	if cfg.PortReclaim {
		t.Error("PortReclaim should default to false in production")
	}
}

func TestLoad_ProductionMissingProviderURL_ReturnsError(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("expected error for missing production URL")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestLoad_PostgresStoreRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_STORE", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_UnknownSessionStore_ReturnsError(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_STORE", "memcached")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported session store")
	}
}

func TestLoad_InvalidSameSite_ReturnsError(t *testing.T) {
	clearEnv(t)
	t.Setenv("COOKIE_SAMESITE", "sideways")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid SameSite")
	}
}

func TestLoad_ConfigFileOverlay(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "rydora.yaml")
	content := `
environments:
  development: https://dev.rydora.example
  production: https://prod.rydora.example
localUsers:
  - email: fleet@rydora.com
    passwordHash: "$2a$10$abcdefghijklmnopqrstuu"
    isOwner: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("RYDORA_CONFIG_FILE", path)
	t.Setenv("PROVIDER_API_URL_PROD", "https://override.rydora.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ProviderURLDevelopment != "https://dev.rydora.example" {
		t.Errorf("ProviderURLDevelopment = %q", cfg.ProviderURLDevelopment)
	}
	// 環境変数がファイルより優先される
	if cfg.ProviderURLProduction != "https://override.rydora.example" {
		t.Errorf("ProviderURLProduction = %q", cfg.ProviderURLProduction)
	}
	if len(cfg.LocalUsers) != 1 || !cfg.LocalUsers[0].IsOwner {
		t.Errorf("LocalUsers = %+v", cfg.LocalUsers)
	}
}
