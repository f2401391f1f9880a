package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN" required:"true"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"sqlite://data/chorebot.db"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON        bool   `envconfig:"LOG_JSON" default:"false"`
	PrometheusPort string `envconfig:"PROMETHEUS_PORT" default:"9090"`
	Port           string `envconfig:"PORT" default:"8080"`

	Timezone     string `envconfig:"TIMEZONE" default:"Asia/Almaty"`
	UploadsDir   string `envconfig:"UPLOADS_DIR" default:"data/uploads"`
	ProofBucket  string `envconfig:"PROOF_BUCKET"`
	CatalogFile  string `envconfig:"CATALOG_FILE"`
	UnmarkPolicy string `envconfig:"UNMARK_POLICY" default:"any"`

	// Weekly digest to parents; weekday follows time.Weekday (0 = Sunday).
	DigestWeekday int `envconfig:"DIGEST_WEEKDAY" default:"0"`
	DigestHour    int `envconfig:"DIGEST_HOUR" default:"20"`
}

// Load loads configuration from environment variables. Values found in
// envFile are applied first; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) validate() error {
	if c.DigestWeekday < 0 || c.DigestWeekday > 6 {
		return fmt.Errorf("DIGEST_WEEKDAY must be between 0 and 6, got %d", c.DigestWeekday)
	}
	if c.DigestHour < 0 || c.DigestHour > 23 {
		return fmt.Errorf("DIGEST_HOUR must be between 0 and 23, got %d", c.DigestHour)
	}
	switch c.UnmarkPolicy {
	case "any", "pending-only":
	default:
		return fmt.Errorf("UNMARK_POLICY must be \"any\" or \"pending-only\", got %q", c.UnmarkPolicy)
	}
	return nil
}
