// Package config loads service settings from FAMTASKS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "FAMTASKS_"

const minSecretLength = 16

type Config struct {
	Port          string        `env:"PORT"           envDefault:"8080"`
	DBPath        string        `env:"DB_PATH"        envDefault:"famtasks.db"`
	LogLevel      string        `env:"LOG_LEVEL"      envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT"     envDefault:"text"`
	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL      time.Duration `env:"TOKEN_TTL"      envDefault:"720h"`
	Timezone      string        `env:"TIMEZONE"       envDefault:"Local"`
	AlertInterval time.Duration `env:"ALERT_INTERVAL" envDefault:"1m"`
	OTELEnabled   bool          `env:"OTEL_ENABLED"   envDefault:"true"`
	OTELEndpoint  string        `env:"OTEL_ENDPOINT"`

	location *time.Location
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if len(c.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("%sJWT_SECRET must be at least %d characters", envPrefix, minSecretLength))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%sTOKEN_TTL must be positive", envPrefix))
	}
	if c.AlertInterval <= 0 {
		errs = append(errs, fmt.Errorf("%sALERT_INTERVAL must be positive", envPrefix))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%sLOG_FORMAT must be text or json, got %q", envPrefix, c.LogFormat))
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("%sTIMEZONE: %w", envPrefix, err))
	}
	c.location = loc

	return errors.Join(errs...)
}

// Location is the zone history buckets are computed in.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
