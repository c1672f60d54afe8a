package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"paper-trader/internal/journal"
	"paper-trader/internal/logging"
	"paper-trader/internal/models"
	"paper-trader/internal/trading"
)

// contextOf builds the command context carrying the app logger.
func contextOf(app *App) context.Context {
	return logging.WithLogger(context.Background(), app.Logger)
}

// openFlags holds the shared flags for buy/sell commands.
type openFlags struct {
	exchange string
	quantity int
	price    float64
	stopLoss float64
	target   float64
}

func addOpenFlags(cmd *cobra.Command, flags *openFlags) {
	cmd.Flags().StringVar(&flags.exchange, "exchange", "NSE", "exchange (NSE, BSE, NFO)")
	cmd.Flags().IntVar(&flags.quantity, "qty", 0, "quantity (required)")
	cmd.Flags().Float64Var(&flags.price, "price", 0, "entry price (required)")
	cmd.Flags().Float64Var(&flags.stopLoss, "sl", 0, "stop-loss price (required)")
	cmd.Flags().Float64Var(&flags.target, "target", 0, "target price (required)")
	cmd.MarkFlagRequired("qty")
	cmd.MarkFlagRequired("price")
	cmd.MarkFlagRequired("sl")
	cmd.MarkFlagRequired("target")
}

func runOpen(app *App, side models.Side, symbol string, flags *openFlags) error {
	pos, err := app.Engine.OpenPosition(contextOf(app), trading.OpenRequest{
		Symbol:   symbol,
		Exchange: models.Exchange(flags.exchange),
		Side:     side,
		Quantity: flags.quantity,
		Price:    flags.price,
		StopLoss: flags.stopLoss,
		Target:   flags.target,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s %d %s @ %s (SL %s, target %s, margin %s)\n",
		pos.Side, pos.Quantity, pos.Symbol,
		FormatIndianCurrency(pos.EntryPrice),
		FormatIndianCurrency(pos.StopLoss),
		FormatIndianCurrency(pos.Target),
		FormatIndianCurrency(pos.MarginUsed))
	return nil
}

func newBuyCmd(app *App) *cobra.Command {
	flags := &openFlags{}
	cmd := &cobra.Command{
		Use:   "buy SYMBOL",
		Short: "Open a simulated long position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(app, models.SideLong, args[0], flags)
		},
	}
	addOpenFlags(cmd, flags)
	return cmd
}

func newSellCmd(app *App) *cobra.Command {
	flags := &openFlags{}
	cmd := &cobra.Command{
		Use:   "sell SYMBOL",
		Short: "Open a simulated short position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(app, models.SideShort, args[0], flags)
		},
	}
	addOpenFlags(cmd, flags)
	return cmd
}

func newExitCmd(app *App) *cobra.Command {
	var price float64
	cmd := &cobra.Command{
		Use:   "exit SYMBOL",
		Short: "Close an open position manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trade, err := app.Engine.ClosePosition(contextOf(app), args[0], price)
			if err != nil {
				return err
			}
			printTrade(trade)
			return nil
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "exit price (required)")
	cmd.MarkFlagRequired("price")
	return cmd
}

func newSquareOffCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "squareoff",
		Short: "Force-close all open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			closed := app.Engine.SquareOffAll(contextOf(app), app.Source)
			if len(closed) == 0 {
				fmt.Println("No open positions")
				return nil
			}
			for i := range closed {
				printTrade(&closed[i])
			}
			return nil
		},
	}
}

func newPositionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show open positions and capital",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := app.Engine.Snapshot()

			if len(snap.Positions) == 0 {
				fmt.Println("No open positions")
			}
			for _, pos := range snap.Positions {
				fmt.Printf("%-12s %-5s qty %-6d entry %-12s SL %-12s target %-12s margin %s\n",
					pos.Symbol, pos.Side, pos.Quantity,
					FormatIndianCurrency(pos.EntryPrice),
					FormatIndianCurrency(pos.StopLoss),
					FormatIndianCurrency(pos.Target),
					FormatIndianCurrency(pos.MarginUsed))
			}

			fmt.Printf("\nMarket: %s\n", app.Session.Status(time.Now()))
			fmt.Printf("Cash: %s  Used margin: %s  Available: %s  Realized P&L: %s\n",
				FormatIndianCurrency(snap.Cash),
				FormatIndianCurrency(snap.UsedMargin),
				FormatIndianCurrency(snap.AvailableMargin),
				FormatPnL(snap.RealizedPnL))
			if snap.Halted {
				fmt.Println("WARNING: engine halted, mutations refused")
			}
			return nil
		},
	}
}

func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show aggregate statistics from the trade journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Engine.Summary(contextOf(app))
			if err != nil {
				return err
			}

			fmt.Printf("Trades: %d  Wins: %d  Losses: %d  Win rate: %s\n",
				s.TotalTrades, s.Wins, s.Losses, FormatPercent(s.WinRate))
			fmt.Printf("Total P&L: %s  Profit factor: %.2f\n", FormatPnL(s.TotalPnL), s.ProfitFactor)
			fmt.Printf("Avg win: %s  Avg loss: %s  Best: %s  Worst: %s\n",
				FormatIndianCurrency(s.AverageWin),
				FormatIndianCurrency(s.AverageLoss),
				FormatPnL(s.BestTrade),
				FormatPnL(s.WorstTrade))
			for reason, count := range s.ByReason {
				fmt.Printf("  %-30s %d\n", reason, count)
			}
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the trade journal to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return app.Journal.ExportCSV(contextOf(app), journal.TradeFilter{}, os.Stdout)
			}
			if err := app.Journal.ExportCSVFile(contextOf(app), journal.TradeFilter{}, out); err != nil {
				return err
			}
			fmt.Printf("Journal exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newMonitorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the position monitor until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(app)
			monitor := trading.NewMonitor(trading.MonitorConfig{
				RoutineInterval:  app.Config.Monitor.RoutineInterval,
				PreCloseInterval: app.Config.Monitor.PreCloseInterval,
				PriceTimeout:     app.Config.Monitor.PriceTimeout,
				PriceRetries:     app.Config.Monitor.PriceRetries,
				PriceRetryDelay:  app.Config.Monitor.PriceRetryDelay,
			}, app.Engine, app.Source, app.Session, app.Logger)

			if err := monitor.Start(ctx); err != nil {
				return err
			}

			// Echo exits as the monitor produces them.
			events := app.Hub.Subscribe("cli")
			go func() {
				for event := range events {
					printTrade(&event.Trade)
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			monitor.Stop()
			app.Hub.Unsubscribe("cli")
			return nil
		},
	}
}

func printTrade(trade *models.ClosedTrade) {
	fmt.Printf("CLOSED %-12s %-5s qty %-6d entry %-12s exit %-12s P&L %s (%s) [%s]\n",
		trade.Symbol, trade.Side, trade.Quantity,
		FormatIndianCurrency(trade.EntryPrice),
		FormatIndianCurrency(trade.ExitPrice),
		FormatPnL(trade.PnL),
		FormatPercent(trade.PnLPercent),
		trade.ExitReason)
}
