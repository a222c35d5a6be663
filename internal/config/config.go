// Package config loads runtime settings from the environment (and a .env file when present).
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port             string   `env:"PORT" envDefault:"8080"`
	AppEnv           string   `env:"APP_ENV" envDefault:"development"`
	DBPath           string   `env:"DB_PATH" envDefault:"./ir_tracker.db"`
	DBDebug          bool     `env:"DB_DEBUG" envDefault:"false"`
	FrontendDistPath string   `env:"FRONTEND_DIST_PATH"`
	FrontendURL      string   `env:"FRONTEND_URL" envDefault:"/"`
	CORSOrigins      []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`

	Auth     AuthConfig
	Catalog  CatalogConfig
	Market   MarketplaceConfig
	Upstream UpstreamConfig
	Redis    RedisConfig

	SyncOnStartup bool `env:"SYNC_CATALOG_ON_STARTUP" envDefault:"false"`
	// 0 disables the background totals refresher
	StatsRefreshInterval time.Duration `env:"STATS_REFRESH_INTERVAL" envDefault:"1h"`
}

type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/auth/google/callback"`
	AdminUsers         []string      `env:"ADMIN_USER_IDS" envSeparator:","`
}

type CatalogConfig struct {
	BaseURL string `env:"POKEMON_TCG_BASE_URL" envDefault:"https://api.pokemontcg.io/v2"`
	APIKey  string `env:"POKEMON_TCG_API_KEY"`
	// Only expansions in these series are synced
	Series []string `env:"CATALOG_SERIES" envSeparator:"," envDefault:"Scarlet & Violet"`
}

type MarketplaceConfig struct {
	BaseURL    string `env:"CARDTRADER_BASE_URL" envDefault:"https://api.cardtrader.com/api/v2"`
	Token      string `env:"CARDTRADER_TOKEN"`
	DailyLimit int    `env:"CARDTRADER_DAILY_LIMIT" envDefault:"5000"`

	// Extra slug=id pairs merged over the built-in expansion table
	ExpansionIDs string `env:"MARKETPLACE_EXPANSION_IDS"`
}

type UpstreamConfig struct {
	Timeout     time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
	Retries     int           `env:"UPSTREAM_RETRIES" envDefault:"2"`
	RatePerSec  float64       `env:"UPSTREAM_RATE_PER_SEC" envDefault:"5"`
	FanOutLimit int           `env:"FANOUT_LIMIT" envDefault:"4"`
}

type RedisConfig struct {
	Addr      string        `env:"REDIS_ADDR"`
	Password  string        `env:"REDIS_PASSWORD"`
	DB        int           `env:"REDIS_DB" envDefault:"0"`
	RateLimit int64         `env:"RATE_LIMIT_REQUESTS" envDefault:"30"`
	Window    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// IsProduction reports whether cookies should be marked Secure
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads .env (ignored when missing) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.Auth.JWTSecret = "dev-insecure-secret"
	}
	if cfg.Upstream.FanOutLimit <= 0 {
		cfg.Upstream.FanOutLimit = 1
	}
	if cfg.Upstream.Retries < 0 {
		cfg.Upstream.Retries = 0
	}

	return cfg, nil
}
