// Package config loads the forecast service configuration from a TOML file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Forecast ForecastConfig `toml:"forecast"`
	Scanner  ScannerConfig  `toml:"scanner"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
}

// DatabaseConfig selects the SQL dialect and connection string.
type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite3, postgres
	DSN    string `toml:"dsn"`
}

// LogConfig holds logrus settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json, text
}

// ForecastConfig tunes the engine.
type ForecastConfig struct {
	DefaultLookbackMonths int `toml:"default_lookback_months"`
	UpliftMaxAttempts     int `toml:"uplift_max_attempts"`
}

// ScannerConfig controls the periodic risk scan.
type ScannerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron expression
}

// Duration is a time.Duration written as "15s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
			ReadTimeout:    Duration{15 * time.Second},
			WriteTimeout:   Duration{15 * time.Second},
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "./forecast.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Forecast: ForecastConfig{
			DefaultLookbackMonths: 12,
			UpliftMaxAttempts:     100,
		},
		Scanner: ScannerConfig{
			Enabled:  true,
			Schedule: "@every 1h",
		},
	}
}

// Load reads the config file at path, returning defaults if it doesn't
// exist, then applies environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("reading config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Save writes cfg to path.
func Save(path string, cfg Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := os.LookupEnv("DB_DRIVER"); ok {
		c.Database.Driver = v
	}
	if v, ok := os.LookupEnv("DB_CONN"); ok {
		c.Database.DSN = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver %q: must be sqlite3 or postgres", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q: must be json or text", c.Log.Format)
	}
	if c.Forecast.DefaultLookbackMonths <= 0 {
		return fmt.Errorf("forecast.default_lookback_months must be positive")
	}
	if c.Forecast.UpliftMaxAttempts < 0 {
		return fmt.Errorf("forecast.uplift_max_attempts must not be negative")
	}
	if c.Scanner.Enabled && c.Scanner.Schedule == "" {
		return fmt.Errorf("scanner.schedule is required when the scanner is enabled")
	}
	return nil
}

// NewLogger builds the service logger from the log section.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if strings.EqualFold(c.Log.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
