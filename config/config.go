// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"budget-engine"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Path string `envconfig:"DB_PATH" default:"budgets.db"`
	}

	Rollover struct {
		// Cron expression for the nightly batch, evaluated in TimeZone.
		Schedule string `envconfig:"ROLLOVER_SCHEDULE" default:"0 2 * * *"`
		Enabled  bool   `envconfig:"ROLLOVER_ENABLED" default:"true"`
	}

	// TimeZone is the single designated zone all calendar dates live in.
	TimeZone string `envconfig:"TIME_ZONE" default:"America/New_York"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"15s"`
	}
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
