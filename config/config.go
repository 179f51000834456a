package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Server struct {
		// Port the HTTP server listens on
		Port string `env:"PORT" envDefault:"4000"`

		// Allowed CORS origins
		CORSOrigins []string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000" envSeparator:","`

		// gin mode: debug, release or test
		GinMode string `env:"GIN_MODE" envDefault:"release"`
	}

	// Database configuration
	Database struct {
		// Driver is sqlite or postgres
		Driver string `env:"DB_DRIVER" envDefault:"sqlite"`

		// DSN for the selected driver
		URL string `env:"DATABASE_URL" envDefault:"dealflow.db"`
	}

	// Auth configuration
	Auth struct {
		// Secret used to sign bearer tokens
		JWTSecret string `env:"JWT_SECRET,notEmpty"`

		// Token lifetime
		JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"168h"`

		// bcrypt work factor
		BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`
	}

	// AI configuration
	AI struct {
		APIKey string `env:"ANTHROPIC_API_KEY"`

		Model string `env:"AI_MODEL" envDefault:"claude-sonnet-4-5-20250929"`

		// Default completion budget; market reports use twice this
		MaxTokens int64 `env:"AI_MAX_TOKENS" envDefault:"1024"`
	}

	// Background jobs
	Jobs struct {
		// Interval of the open-lead rescoring job; off unless set
		RescoreInterval time.Duration `env:"RESCORE_INTERVAL" envDefault:"0s"`

		// Upper bound on a single job run
		Timeout time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`
	}

	// Log configuration
	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`

		// json or text
		Format string `env:"LOG_FORMAT" envDefault:"json"`
	}
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.Log.Format)
	}
	if c.Jobs.RescoreInterval < 0 {
		return errors.New("RESCORE_INTERVAL must not be negative")
	}
	if c.Auth.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	return nil
}
