// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvProduction は本番環境を示すAPP_ENVの値。
	EnvProduction = "production"

	// APIKeyPlaceholder はサンプル設定に残されたままのAPIキー。未設定として扱う。
	APIKeyPlaceholder = "your-api-key-here"

	// defaultJWTSecret は開発環境でのみ許容するローカルトークン署名鍵。
	defaultJWTSecret = "rydora-dev-secret"
)

// LocalUser はプロバイダー不達時のローカル認証テーブルの1エントリ。
// PasswordHashはbcryptハッシュ。
type LocalUser struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"passwordHash"`
	FirstName    string `yaml:"firstName"`
	LastName     string `yaml:"lastName"`
	CompanyID    string `yaml:"companyId"`
	CompanyName  string `yaml:"companyName"`
	IsAdmin      bool   `yaml:"isAdmin"`
	IsOwner      bool   `yaml:"isOwner"`
}

// UpstreamTimeouts は操作種別ごとのプロバイダー呼び出しタイムアウト。
type UpstreamTimeouts struct {
	Auth  time.Duration
	Read  time.Duration
	Write time.Duration
	Heavy time.Duration // メール送信、車両・請求書作成
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数（および任意のYAMLファイル）から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	AppEnv string

	// Provider
	ProviderURLDevelopment string
	ProviderURLProduction  string
	ProviderURLDefault     string
	ProviderAPIKey         string
	UpstreamTimeouts       UpstreamTimeouts

	// NYC Open Data
	OpenDataURL      string
	OpenDataAppToken string
	OpenDataTimeout  time.Duration

	// Session
	SessionStore         string // memory, postgres, redis
	SessionMaxAge        int
	SessionSweepSchedule string
	DatabaseURL          string
	RedisURL             string

	// Mock login
	MockLoginEnabled bool
	JWTSecret        string
	LocalUsers       []LocalUser

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	BaseURL     string
	PortReclaim bool

	// Cookie
	CookieSecure   bool
	CookieDomain   string
	CookieSameSite http.SameSite

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境で起動しているかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// HasAPIKey は有効な静的APIキーが設定されているかを返す。
func (c *Config) HasAPIKey() bool {
	return c.ProviderAPIKey != "" && c.ProviderAPIKey != APIKeyPlaceholder
}

// fileConfig はRYDORA_CONFIG_FILEで指定するYAMLファイルの構造。
type fileConfig struct {
	Environments struct {
		Development string `yaml:"development"`
		Production  string `yaml:"production"`
		Default     string `yaml:"default"`
	} `yaml:"environments"`
	LocalUsers []LocalUser `yaml:"localUsers"`
}

// Load は環境変数からConfigを読み込む。
// RYDORA_CONFIG_FILEが指定されている場合は、そのYAMLを先に読み込み環境変数で上書きする。
// 本番環境で必須の値が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var file fileConfig
	if path := os.Getenv("RYDORA_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.AppEnv = getEnvString("APP_ENV", "development")
	prod := cfg.IsProduction()

	cfg.ProviderURLDevelopment = getEnvString("PROVIDER_API_URL_DEV", file.Environments.Development)
	cfg.ProviderURLProduction = getEnvString("PROVIDER_API_URL_PROD", file.Environments.Production)
	cfg.ProviderURLDefault = getEnvString("PROVIDER_API_URL", orDefault(file.Environments.Default, "http://localhost:8080"))
	cfg.ProviderAPIKey = getEnvString("PROVIDER_API_KEY", APIKeyPlaceholder)
	cfg.UpstreamTimeouts = UpstreamTimeouts{
		Auth:  getEnvDuration("UPSTREAM_TIMEOUT_AUTH", 10*time.Second),
		Read:  getEnvDuration("UPSTREAM_TIMEOUT_READ", 15*time.Second),
		Write: getEnvDuration("UPSTREAM_TIMEOUT_WRITE", 30*time.Second),
		Heavy: getEnvDuration("UPSTREAM_TIMEOUT_HEAVY", 60*time.Second),
	}

	cfg.OpenDataURL = getEnvString("NYC_OPEN_DATA_URL", "https://data.cityofnewyork.us/resource/nc67-uf89.json")
	cfg.OpenDataAppToken = getEnvString("NYC_OPEN_DATA_APP_TOKEN", "")
	cfg.OpenDataTimeout = getEnvDuration("NYC_OPEN_DATA_TIMEOUT", 30*time.Second)

	cfg.SessionStore = strings.ToLower(getEnvString("SESSION_STORE", "memory"))
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 3600)
	cfg.SessionSweepSchedule = getEnvString("SESSION_SWEEP_SCHEDULE", "@every 10m")
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.RedisURL = getEnvString("REDIS_URL", "")

	cfg.MockLoginEnabled = getEnvBool("MOCK_LOGIN_ENABLED", !prod)
	cfg.JWTSecret = getEnvString("JWT_SECRET", "")
	cfg.LocalUsers = file.LocalUsers

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 300)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.ServerPort = getEnvString("SERVER_PORT", "5000")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:5000")
	cfg.PortReclaim = getEnvBool("PORT_RECLAIM", !prod)

	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", prod)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	defaultSameSite := "lax"
	if prod {
		defaultSameSite = "none"
	}
	sameSite, err := parseSameSite(getEnvString("COOKIE_SAMESITE", defaultSameSite))
	if err != nil {
		return nil, err
	}
	cfg.CookieSameSite = sameSite
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// Required fields
	var missing []string
	if prod {
		if cfg.ProviderURLProduction == "" {
			missing = append(missing, "PROVIDER_API_URL_PROD")
		}
		if cfg.JWTSecret == "" && cfg.MockLoginEnabled {
			missing = append(missing, "JWT_SECRET")
		}
	}
	switch cfg.SessionStore {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "redis":
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE: %q", cfg.SessionStore)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = defaultJWTSecret
	}

	return cfg, nil
}

// parseSameSite はCOOKIE_SAMESITEの値をhttp.SameSiteに変換する。
func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("invalid COOKIE_SAMESITE: %q", v)
	}
}

func orDefault(v, defaultVal string) string {
	if v != "" {
		return v
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
