package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath      string        `env:"DB_PATH" envDefault:"data/escaperoom.db"`
	LogLevel    slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	RedisURL    string        `env:"REDIS_URL"`
	// LockTTL is the Redis session lock lease. Holders renew it every
	// LockTTL/3, so it only bounds how long a crashed instance blocks a session.
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	SeedDemo    bool          `env:"SEED_DEMO" envDefault:"true"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads .env when present, then the process environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must not be empty")
	}
	return &cfg, nil
}
