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
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/questhunt.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SeedFile string     `env:"SEED_FILE"`

	ProximityRadius float64 `env:"PROXIMITY_RADIUS_M" envDefault:"50"`
	CompletionBonus int     `env:"COMPLETION_BONUS_COINS" envDefault:"50"`
	MaxRetries      int     `env:"MAX_CONFLICT_RETRIES" envDefault:"3"`
	BonusWorkers    int     `env:"BONUS_WORKERS" envDefault:"4"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	ReconcileBatch    int           `env:"RECONCILE_BATCH" envDefault:"100"`
	// PendingMaxAttempts is how often a pending credit is replayed before
	// it is parked for an operator.
	PendingMaxAttempts int `env:"PENDING_MAX_ATTEMPTS" envDefault:"10"`

	// AdminTokenHash is a bcrypt hash of the admin bearer token. Admin
	// routes are disabled when it is empty.
	AdminTokenHash string   `env:"ADMIN_TOKEN_HASH"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ProximityRadius <= 0 {
		errs = append(errs, fmt.Errorf("PROXIMITY_RADIUS_M must be positive, got %v", c.ProximityRadius))
	}
	if c.CompletionBonus < 0 {
		errs = append(errs, fmt.Errorf("COMPLETION_BONUS_COINS must not be negative, got %d", c.CompletionBonus))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONFLICT_RETRIES must be positive, got %d", c.MaxRetries))
	}
	if c.BonusWorkers <= 0 {
		errs = append(errs, fmt.Errorf("BONUS_WORKERS must be positive, got %d", c.BonusWorkers))
	}
	if c.ReconcileInterval <= 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_INTERVAL must be positive, got %v", c.ReconcileInterval))
	}
	if c.ReconcileBatch <= 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_BATCH must be positive, got %d", c.ReconcileBatch))
	}
	if c.PendingMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("PENDING_MAX_ATTEMPTS must be positive, got %d", c.PendingMaxAttempts))
	}
	return errors.Join(errs...)
}
