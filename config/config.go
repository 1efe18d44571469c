// Package config loads the server configuration from defaults, an optional
// YAML file and COURSES_* environment variables, in that order.
package config

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "COURSES_"

// Config is the server configuration.
type Config struct {
	Addr string `yaml:"addr" env:"ADDR"`
	DSN  string `yaml:"dsn" env:"DSN"`

	AdminAccount  string        `yaml:"admin_account" env:"ADMIN_ACCOUNT"`
	AdminPassword string        `yaml:"admin_password" env:"ADMIN_PASSWORD"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	SecureCookies bool          `yaml:"secure_cookies" env:"SECURE_COOKIES"`

	// Timezone decides which month the calendar opens on.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr:          ":8080",
		DSN:           "file:courses.db?mode=rwc&_pragma=busy_timeout(5000)",
		AdminAccount:  "admin",
		AdminPassword: "1234",
		SessionTTL:    12 * time.Hour,
		Timezone:      "Local",
		RateLimit:     10,
		RateBurst:     20,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded into the environment first, and path names an optional YAML file;
// neither has to exist.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Annotate(err, "load .env")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, errors.Annotatef(err, "read config file %s", path)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.Annotatef(err, "parse config file %s", path)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Annotate(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.NotValidf("empty addr")
	case c.DSN == "":
		return errors.NotValidf("empty dsn")
	case c.AdminAccount == "" || c.AdminPassword == "":
		return errors.NotValidf("empty admin account or password")
	case c.SessionTTL <= 0:
		return errors.NotValidf("session_ttl %v", c.SessionTTL)
	case c.RateLimit < 0:
		return errors.NotValidf("rate_limit %v", c.RateLimit)
	case c.RateLimit > 0 && c.RateBurst < 1:
		return errors.NotValidf("rate_burst %d", c.RateBurst)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.NotValidf("log_format %q", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.NotValidf("log_level %q", c.LogLevel)
	}
	return level, nil
}

// Location loads Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.NotValidf("timezone %q", c.Timezone)
	}
	return loc, nil
}

// NewLogger returns a logger writing to w in the configured format and level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
