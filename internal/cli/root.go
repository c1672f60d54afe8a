// Package cli provides the command-line interface for the paper trading
// engine.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paper-trader/internal/broker"
	"paper-trader/internal/config"
	"paper-trader/internal/journal"
	"paper-trader/internal/ledger"
	"paper-trader/internal/logging"
	"paper-trader/internal/stream"
	"paper-trader/internal/trading"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Engine  *trading.Engine
	Journal *journal.Journal
	Source  broker.PriceSource
	Hub     *stream.Hub
	Session *trading.SessionClock
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) (*cobra.Command, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	cash, err := ledger.New(cfg.Paper.InitialCapital, cfg.Paper.Leverage, logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Journal.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	jnl, err := journal.Open(cfg.Journal.DBPath, logger)
	if err != nil {
		return nil, err
	}
	app.Journal = jnl

	app.Hub = stream.NewHub()
	app.Engine = trading.NewEngine(cash, jnl, app.Hub, logger)

	soHour, soMinute, err := config.ParseClock(cfg.Monitor.SquareOffTime)
	if err != nil {
		return nil, err
	}
	app.Session = trading.NewSessionClock(soHour, soMinute, cfg.Monitor.PreCloseWindow)

	// Live quotes need Kite credentials; without them the engine runs on
	// the tick-fed simulated source.
	if cfg.Kite.APIKey != "" {
		app.Source = broker.NewKiteSource(broker.KiteConfig{
			APIKey:      cfg.Kite.APIKey,
			AccessToken: cfg.Kite.AccessToken,
		})
		logger.Debug().Msg("Kite price source initialized")
	} else {
		app.Source = broker.NewMemorySource()
		logger.Debug().Msg("In-memory price source initialized")
	}

	rootCmd := &cobra.Command{
		Use:     "paper-trader",
		Short:   "Simulated-order execution and risk-monitoring engine",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Journal.Close()
			app.Hub.Close()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newBuyCmd(app),
		newSellCmd(app),
		newExitCmd(app),
		newSquareOffCmd(app),
		newPositionsCmd(app),
		newSummaryCmd(app),
		newExportCmd(app),
		newMonitorCmd(app),
	)

	return rootCmd, nil
}

// Execute loads configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Log.Level,
		Console:    cfg.Log.Console,
		File:       cfg.Log.File,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	})

	rootCmd, err := NewRootCmd(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Initialization failed")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
