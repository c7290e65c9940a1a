package services

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds the runtime settings read from the environment.
type Config struct {
	Port               string        `env:"PORT" envDefault:"8000"`
	DatabasePath       string        `env:"DATABASE_PATH" envDefault:"./scheduler.db"`
	AuthEnabled        bool          `env:"AUTH_ENABLED" envDefault:"false"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LenientQueryParams bool          `env:"LENIENT_QUERY_PARAMS" envDefault:"false"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"LOG_FORMAT" envDefault:"text"`
}

const defaultJWTSecret = "change-me-in-production"

// LoadEnv loads variables from a .env file without overriding variables that
// are already set. A missing file is not an error.
func LoadEnv(filename string) error {
	err := godotenv.Load(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", filename, err)
	}
	return nil
}

// LoadConfig builds a Config from environment variables, applying defaults
// for anything unset.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("invalid TOKEN_TTL %s", cfg.TokenTTL)
	}

	origins := cfg.AllowedOrigins[:0]
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg.AllowedOrigins = origins

	if cfg.AuthEnabled && cfg.JWTSecret == defaultJWTSecret {
		return Config{}, errors.New("JWT_SECRET must be set when AUTH_ENABLED is true")
	}

	return cfg, nil
}
