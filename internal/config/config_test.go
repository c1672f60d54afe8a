package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "paper-trader/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	// An explicit path that does not exist is an error; load defaults by
	// pointing at an empty file instead.
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	cfg, err = LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 100000.0, cfg.Paper.InitialCapital)
	assert.Equal(t, 5.0, cfg.Paper.Leverage)
	assert.Equal(t, 10*time.Second, cfg.Monitor.RoutineInterval)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PreCloseInterval)
	assert.Equal(t, 15*time.Minute, cfg.Monitor.PreCloseWindow)
	assert.Equal(t, "15:20", cfg.Monitor.SquareOffTime)
	assert.Equal(t, 3, cfg.Monitor.PriceRetries)
	assert.NotEmpty(t, cfg.Journal.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
paper:
  initial_capital: 500000
  leverage: 2
monitor:
  routine_interval: 30s
  squareoff_time: "15:00"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 500000.0, cfg.Paper.InitialCapital)
	assert.Equal(t, 2.0, cfg.Paper.Leverage)
	assert.Equal(t, 30*time.Second, cfg.Monitor.RoutineInterval)
	assert.Equal(t, "15:00", cfg.Monitor.SquareOffTime)
	// Untouched values keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Monitor.PreCloseInterval)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Paper: PaperConfig{InitialCapital: 100000, Leverage: 5},
			Monitor: MonitorConfig{
				RoutineInterval:  10 * time.Second,
				PreCloseInterval: 5 * time.Second,
				PreCloseWindow:   15 * time.Minute,
				SquareOffTime:    "15:20",
				PriceTimeout:     5 * time.Second,
				PriceRetries:     3,
			},
			Journal: JournalConfig{DBPath: "journal.db"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"zero capital", func(c *Config) { c.Paper.InitialCapital = 0 }, false},
		{"sub-unit leverage", func(c *Config) { c.Paper.Leverage = 0.5 }, false},
		{"zero routine interval", func(c *Config) { c.Monitor.RoutineInterval = 0 }, false},
		{"zero preclose interval", func(c *Config) { c.Monitor.PreCloseInterval = 0 }, false},
		{"zero preclose window", func(c *Config) { c.Monitor.PreCloseWindow = 0 }, false},
		{"zero retries", func(c *Config) { c.Monitor.PriceRetries = 0 }, false},
		{"bad squareoff time", func(c *Config) { c.Monitor.SquareOffTime = "25:99" }, false},
		{"empty db path", func(c *Config) { c.Journal.DBPath = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrInvalidParameters)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := ParseClock("15:20")
	require.NoError(t, err)
	assert.Equal(t, 15, hour)
	assert.Equal(t, 20, minute)

	_, _, err = ParseClock("nonsense")
	assert.Error(t, err)

	_, _, err = ParseClock("24:00")
	assert.Error(t, err)
}
