// Package config reads okrtrack settings from OKRTRACK_* environment
// variables, after loading any .env files that exist.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "OKRTRACK_"

// DefaultEnvFiles are loaded when present. Variables already set in the
// process environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

type LogOptions struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"text"`
	Path       string `env:"PATH"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"28"`
}

type Config struct {
	Workspace  string `env:"WORKSPACE" envDefault:"."`
	Org        string `env:"ORG"`
	As         string `env:"AS"`
	Identities string `env:"IDENTITIES"`
	Timezone   string `env:"TIMEZONE" envDefault:"UTC"`
	Notify     bool   `env:"NOTIFY" envDefault:"false"`

	Log LogOptions `envPrefix:"LOG_"`
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return 0, errors.Wrap(err, "load env files")
	}
	return len(existing), nil
}

// Load reads the env files then parses and validates the environment.
func Load(envFiles ...string) (*Config, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, err
	}
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Prefix: Prefix}); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate normalizes and checks enumerated settings.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "":
		c.Log.Level = "info"
	case "debug", "info", "warn", "warning", "error", "silent":
	default:
		return errors.Errorf("invalid %sLOG_LEVEL=%q (expected debug|info|warn|error|silent)", Prefix, c.Log.Level)
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "":
		c.Log.Format = "text"
	case "text", "json":
	default:
		return errors.Errorf("invalid %sLOG_FORMAT=%q (expected text|json)", Prefix, c.Log.Format)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone used to decide what "today" is.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %sTIMEZONE=%q", Prefix, c.Timezone)
	}
	return loc, nil
}
