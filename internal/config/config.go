package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// OAuth
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID,required,notEmpty"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET,required,notEmpty"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL,required,notEmpty"`
	OAuthHTTPTimeout   time.Duration `env:"OAUTH_HTTP_TIMEOUT" envDefault:"10s"`

	// Session
	SessionSecret        string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionMaxAge        int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	SessionPurgeInterval time.Duration `env:"SESSION_PURGE_INTERVAL" envDefault:"1h"`

	// Account
	RequireVerifiedEmail bool `env:"REQUIRE_VERIFIED_EMAIL" envDefault:"true"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitLogin   int `env:"RATE_LIMIT_LOGIN" envDefault:"20"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`
	// WorkerMetricsPort はworkerモードで/metricsを公開するポート（空の場合は公開しない）。
	WorkerMetricsPort string `env:"WORKER_METRICS_PORT"`

	// Cookie
	// CookieSecure はBASE_URLのスキームから導出する。
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS（空の場合は無効）
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`
}

// SessionTTL はセッションの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// LoadDotEnv はカレントディレクトリ（またはpaths）の.envを環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = isHTTPS(cfg.BaseURL)
	return cfg, nil
}

// validate は値の範囲を検証する。
func (c *Config) validate() error {
	var errs []error

	if c.SessionMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", c.SessionMaxAge))
	}
	if c.SessionPurgeInterval <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_PURGE_INTERVAL must be positive, got %s", c.SessionPurgeInterval))
	}
	if c.OAuthHTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("OAUTH_HTTP_TIMEOUT must be positive, got %s", c.OAuthHTTPTimeout))
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitLogin <= 0 {
		errs = append(errs, fmt.Errorf("rate limits must be positive, got general=%d login=%d", c.RateLimitGeneral, c.RateLimitLogin))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL))
	}
	if u, err := url.Parse(c.GoogleRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("GOOGLE_REDIRECT_URL must be an absolute URL, got %q", c.GoogleRedirectURL))
	}

	return errors.Join(errs...)
}

func isHTTPS(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "https"
}
