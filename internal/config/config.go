// Package config provides configuration management for the paper trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "paper-trader/internal/errors"
)

// Config holds all engine configuration. The engine takes every
// initialization parameter through this struct, validated once at
// construction; there are no implicit global defaults.
type Config struct {
	Paper   PaperConfig   `mapstructure:"paper"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Journal JournalConfig `mapstructure:"journal"`
	Log     LogSettings   `mapstructure:"log"`
	Kite    KiteConfig    `mapstructure:"kite"`
}

// PaperConfig holds simulated-capital configuration.
type PaperConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	Leverage       float64 `mapstructure:"leverage"`
}

// MonitorConfig holds monitor scheduling configuration.
type MonitorConfig struct {
	RoutineInterval  time.Duration `mapstructure:"routine_interval"`
	PreCloseInterval time.Duration `mapstructure:"preclose_interval"`
	PreCloseWindow   time.Duration `mapstructure:"preclose_window"`
	SquareOffTime    string        `mapstructure:"squareoff_time"` // "15:20" wall clock, IST
	PriceTimeout     time.Duration `mapstructure:"price_timeout"`
	PriceRetries     int           `mapstructure:"price_retries"`
	PriceRetryDelay  time.Duration `mapstructure:"price_retry_delay"`
}

// JournalConfig holds trade journal configuration.
type JournalConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogSettings holds logging configuration.
type LogSettings struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// KiteConfig holds Kite Connect credentials for the live price source.
// Credentials are optional; without them the engine runs on the simulated
// price source only.
type KiteConfig struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "paper-trader")
}

// Load reads configuration from the default locations with environment
// overrides (PAPERTRADER_ prefix) and validates the result.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from an explicit file path. An empty path
// falls back to the default config directory.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAPERTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paper.initial_capital", 100000.0)
	v.SetDefault("paper.leverage", 5.0)

	v.SetDefault("monitor.routine_interval", 10*time.Second)
	v.SetDefault("monitor.preclose_interval", 5*time.Second)
	v.SetDefault("monitor.preclose_window", 15*time.Minute)
	v.SetDefault("monitor.squareoff_time", "15:20")
	v.SetDefault("monitor.price_timeout", 5*time.Second)
	v.SetDefault("monitor.price_retries", 3)
	v.SetDefault("monitor.price_retry_delay", 500*time.Millisecond)

	v.SetDefault("journal.db_path", filepath.Join(DefaultConfigDir(), "journal.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(DefaultConfigDir(), "logs", "engine.log"))
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Paper.InitialCapital <= 0 {
		return apperrors.NewValidationError("paper.initial_capital", c.Paper.InitialCapital, "must be positive")
	}
	if c.Paper.Leverage < 1 {
		return apperrors.NewValidationError("paper.leverage", c.Paper.Leverage, "must be at least 1")
	}
	if c.Monitor.RoutineInterval <= 0 {
		return apperrors.NewValidationError("monitor.routine_interval", c.Monitor.RoutineInterval, "must be positive")
	}
	if c.Monitor.PreCloseInterval <= 0 {
		return apperrors.NewValidationError("monitor.preclose_interval", c.Monitor.PreCloseInterval, "must be positive")
	}
	if c.Monitor.PreCloseWindow <= 0 {
		return apperrors.NewValidationError("monitor.preclose_window", c.Monitor.PreCloseWindow, "must be positive")
	}
	if c.Monitor.PriceRetries < 1 {
		return apperrors.NewValidationError("monitor.price_retries", c.Monitor.PriceRetries, "must be at least 1")
	}
	if _, _, err := ParseClock(c.Monitor.SquareOffTime); err != nil {
		return apperrors.NewValidationError("monitor.squareoff_time", c.Monitor.SquareOffTime, "must be HH:MM")
	}
	if c.Journal.DBPath == "" {
		return apperrors.NewValidationError("journal.db_path", c.Journal.DBPath, "must not be empty")
	}
	return nil
}

// ParseClock parses a "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
