// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	AccessTokenSecret  string
	RefreshTokenSecret string
	APIKeySecret       string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	TokenIssuer        string

	// OAuth
	GoogleClientID      string
	GoogleVerifyTimeout time.Duration

	// Cookie
	CookieSecret string
	CookieSecure bool
	CookieDomain string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AccessTokenSecret = os.Getenv("ACCESS_TOKEN_SECRET")
	if cfg.AccessTokenSecret == "" {
		missing = append(missing, "ACCESS_TOKEN_SECRET")
	}

	cfg.RefreshTokenSecret = os.Getenv("REFRESH_TOKEN_SECRET")
	if cfg.RefreshTokenSecret == "" {
		missing = append(missing, "REFRESH_TOKEN_SECRET")
	}

	cfg.APIKeySecret = os.Getenv("API_KEY_SECRET")
	if cfg.APIKeySecret == "" {
		missing = append(missing, "API_KEY_SECRET")
	}

	cfg.CookieSecret = os.Getenv("COOKIE_SECRET")
	if cfg.CookieSecret == "" {
		missing = append(missing, "COOKIE_SECRET")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = getEnvDuration("REFRESH_TOKEN_TTL", 720*time.Hour)
	cfg.TokenIssuer = getEnvString("TOKEN_ISSUER", "todoman")
	cfg.GoogleVerifyTimeout = getEnvDuration("GOOGLE_VERIFY_TIMEOUT", 5*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
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
