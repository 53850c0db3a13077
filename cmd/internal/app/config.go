package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prroha/fullstack-starter-sub003/cmd/internal/auth/token"
)

// Config holds runtime configuration loaded from the environment and an
// optional .env file. Env vars override .env values.
type Config struct {
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// DatabaseURL empty disables persistence; session endpoints then
	// answer 503 and only health/readiness stay meaningful.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// ReadinessRequireDB makes /readyz fail while the DB is not
	// configured or not reachable.
	ReadinessRequireDB bool `mapstructure:"READINESS_REQUIRE_DB"`

	// AuthMasterSecret signs both token classes; ValidateSecurityConfig
	// enforces the minimum length at startup.
	AuthMasterSecret string `mapstructure:"AUTH_MASTER_SECRET"`
	AuthIssuer       string `mapstructure:"AUTH_ISSUER"`

	// Lifetimes use the <count><s|m|h|d> form; read them through
	// AccessTokenTTL / RefreshTokenTTL.
	AccessTokenLifetime  string `mapstructure:"ACCESS_TOKEN_LIFETIME"`
	RefreshTokenLifetime string `mapstructure:"REFRESH_TOKEN_LIFETIME"`

	MaxSessionsPerAccount int    `mapstructure:"MAX_SESSIONS_PER_ACCOUNT"`
	SessionTokenHashKey   string `mapstructure:"SESSION_TOKEN_HASH_KEY"`

	TrustProxy   bool  `mapstructure:"TRUST_PROXY"`
	MaxBodyBytes int64 `mapstructure:"MAX_BODY_BYTES"`

	AccessCookieName  string `mapstructure:"ACCESS_COOKIE_NAME"`
	RefreshCookieName string `mapstructure:"REFRESH_COOKIE_NAME"`
	CSRFCookieName    string `mapstructure:"CSRF_COOKIE_NAME"`
	CSRFHeaderName    string `mapstructure:"CSRF_HEADER_NAME"`
	CookieSecure      bool   `mapstructure:"COOKIE_SECURE"`
	CookieDomain      string `mapstructure:"COOKIE_DOMAIN"`

	CORSAllowedOrigins   []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `mapstructure:"CORS_ALLOW_CREDENTIALS"`
	CORSMaxAgeSeconds    int      `mapstructure:"CORS_MAX_AGE_SECONDS"`

	// SweepInterval <= 0 makes cmd/sweeper run a single pass and exit.
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepBatchSize int           `mapstructure:"SWEEP_BATCH_SIZE"`

	HTTPReadHeaderTimeout time.Duration `mapstructure:"HTTP_READ_HEADER_TIMEOUT"`
	HTTPReadTimeout       time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
	HTTPWriteTimeout      time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
	HTTPIdleTimeout       time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
	HTTPMaxHeaderBytes    int           `mapstructure:"HTTP_MAX_HEADER_BYTES"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// LoadConfig reads .env (if present) and the environment via Viper.
// Missing .env is fine, e.g. in CI.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 8)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("READINESS_REQUIRE_DB", true)

	v.SetDefault("AUTH_MASTER_SECRET", "")
	v.SetDefault("AUTH_ISSUER", "starter")
	v.SetDefault("ACCESS_TOKEN_LIFETIME", "15m")
	v.SetDefault("REFRESH_TOKEN_LIFETIME", "7d")
	v.SetDefault("MAX_SESSIONS_PER_ACCOUNT", 10)
	v.SetDefault("SESSION_TOKEN_HASH_KEY", "")

	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("MAX_BODY_BYTES", 1<<20)

	v.SetDefault("ACCESS_COOKIE_NAME", "starter_access")
	v.SetDefault("REFRESH_COOKIE_NAME", "starter_refresh")
	v.SetDefault("CSRF_COOKIE_NAME", "starter_csrf")
	v.SetDefault("CSRF_HEADER_NAME", "X-CSRF-Token")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_DOMAIN", "")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", true)
	v.SetDefault("CORS_MAX_AGE_SECONDS", 600)

	v.SetDefault("SWEEP_INTERVAL", "0s")
	v.SetDefault("SWEEP_BATCH_SIZE", 500)

	v.SetDefault("HTTP_READ_HEADER_TIMEOUT", "5s")
	v.SetDefault("HTTP_READ_TIMEOUT", "10s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "20s")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "60s")
	v.SetDefault("HTTP_MAX_HEADER_BYTES", 1<<20)

	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	// The slice hook turns "" into [""]; drop blanks and stray spaces.
	cfg.CORSAllowedOrigins = cleanList(cfg.CORSAllowedOrigins)

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return Config{}, errors.New("config: HTTP_ADDR must be set")
	}

	return cfg, nil
}

// AccessTokenTTL parses ACCESS_TOKEN_LIFETIME, falling back to the
// stock access lifetime when unset or invalid.
func (c Config) AccessTokenTTL() time.Duration {
	d, err := token.ParseLifetime(c.AccessTokenLifetime)
	if err != nil {
		return token.DefaultAccessLifetime
	}
	return d
}

// RefreshTokenTTL parses REFRESH_TOKEN_LIFETIME, falling back to the
// stock refresh lifetime when unset or invalid.
func (c Config) RefreshTokenTTL() time.Duration {
	d, err := token.ParseLifetime(c.RefreshTokenLifetime)
	if err != nil {
		return token.DefaultRefreshLifetime
	}
	return d
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
