package trading

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trader/internal/broker"
	"paper-trader/internal/models"
	"paper-trader/pkg/utils"
)

func monitorConfig() MonitorConfig {
	return MonitorConfig{
		RoutineInterval:  10 * time.Second,
		PreCloseInterval: 5 * time.Second,
		PriceTimeout:     2 * time.Second,
		PriceRetries:     1,
		PriceRetryDelay:  time.Millisecond,
		Workers:          2,
	}
}

// newTestMonitor wires a monitor over a fresh engine, an in-memory price
// source and a 15:20 square-off session clock. The returned clock setter
// pins both the engine and monitor to the given instant.
func newTestMonitor(t *testing.T) (*Monitor, *Engine, *broker.MemorySource, func(time.Time)) {
	t.Helper()
	engine, _, _ := newTestEngine(t, 1000000)
	source := broker.NewMemorySource()
	session := NewSessionClock(15, 20, 15*time.Minute)
	monitor := NewMonitor(monitorConfig(), engine, source, session, zerolog.Nop())

	setClock := func(at time.Time) {
		engine.SetClock(func() time.Time { return at })
		monitor.SetClock(func() time.Time { return at })
	}
	return monitor, engine, source, setClock
}

// marketTime returns an instant on Monday 2025-01-06 in the market zone.
func marketTime(t *testing.T, monitor *Monitor, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2025, 1, 6, hour, minute, 0, 0, monitor.session.Location())
}

func TestRunCycleStopLossExit(t *testing.T) {
	monitor, engine, source, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)
	source.SetPrice("RELIANCE", models.NSE, 94)

	closed := monitor.RunCycle(ctx)
	require.Len(t, closed, 1)
	assert.Equal(t, models.ExitStopLoss, closed[0].ExitReason)
	assert.Equal(t, 94.0, closed[0].ExitPrice)
	assert.Empty(t, engine.Positions())
}

func TestRunCycleTargetExit(t *testing.T) {
	monitor, engine, source, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)
	source.SetPrice("RELIANCE", models.NSE, 111)

	closed := monitor.RunCycle(ctx)
	require.Len(t, closed, 1)
	assert.Equal(t, models.ExitTarget, closed[0].ExitReason)
	assert.Equal(t, 111.0, closed[0].ExitPrice)
}

func TestRunCyclePriceUnavailableKeepsPositionOpen(t *testing.T) {
	monitor, engine, _, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)

	closed := monitor.RunCycle(ctx)
	assert.Empty(t, closed)
	assert.Len(t, engine.Positions(), 1)
}

func TestRunCycleHoldsBetweenLevels(t *testing.T) {
	monitor, engine, source, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)
	source.SetPrice("RELIANCE", models.NSE, 100)

	closed := monitor.RunCycle(ctx)
	assert.Empty(t, closed)
	assert.Len(t, engine.Positions(), 1)
}

func TestRunCycleSquareOffClosesEverything(t *testing.T) {
	monitor, engine, source, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)

	infy := validLongRequest()
	infy.Symbol = "INFY"
	_, err = engine.OpenPosition(ctx, infy)
	require.NoError(t, err)

	// One live quote, one blackout. Past the cutoff both must close.
	source.SetPrice("RELIANCE", models.NSE, 102)
	setClock(marketTime(t, monitor, 15, 21))

	closed := monitor.RunCycle(ctx)
	require.Len(t, closed, 2)
	assert.Empty(t, engine.Positions())

	bySymbol := map[string]models.ClosedTrade{}
	for _, trade := range closed {
		bySymbol[trade.Symbol] = trade
	}
	assert.Equal(t, models.ExitAutoSquareOff, bySymbol["RELIANCE"].ExitReason)
	assert.Equal(t, models.ExitPriceUnavailableForced, bySymbol["INFY"].ExitReason)
	assert.Equal(t, 100.0, bySymbol["INFY"].ExitPrice)
}

func TestRunCycleSquareOffUsesLastKnownPrice(t *testing.T) {
	monitor, engine, source, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)

	// A quote mid-session seeds the last known price, then goes dark.
	source.SetPrice("RELIANCE", models.NSE, 103)
	assert.Empty(t, monitor.RunCycle(ctx))
	source.ClearPrice("RELIANCE", models.NSE)

	setClock(marketTime(t, monitor, 15, 21))
	closed := monitor.RunCycle(ctx)
	require.Len(t, closed, 1)
	assert.Equal(t, models.ExitPriceUnavailableForced, closed[0].ExitReason)
	assert.Equal(t, 103.0, closed[0].ExitPrice)
}

func TestRunCycleSkipsNonTradingDay(t *testing.T) {
	monitor, engine, source, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)
	source.SetPrice("RELIANCE", models.NSE, 50)

	// Saturday 2025-01-04.
	setClock(time.Date(2025, 1, 4, 11, 0, 0, 0, monitor.session.Location()))
	assert.Empty(t, monitor.RunCycle(ctx))
	assert.Len(t, engine.Positions(), 1)
}

func TestRunCycleSkipsPreOpen(t *testing.T) {
	monitor, engine, source, setClock := newTestMonitor(t)
	ctx := context.Background()
	setClock(marketTime(t, monitor, 11, 0))

	_, err := engine.OpenPosition(ctx, validLongRequest())
	require.NoError(t, err)
	source.SetPrice("RELIANCE", models.NSE, 50)

	setClock(marketTime(t, monitor, 8, 0))
	assert.Empty(t, monitor.RunCycle(ctx))
	assert.Len(t, engine.Positions(), 1)
}

func TestIntervalSwitchesInPreCloseWindow(t *testing.T) {
	monitor, _, _, _ := newTestMonitor(t)

	routine := marketTime(t, monitor, 11, 0)
	assert.Equal(t, monitor.cfg.RoutineInterval, monitor.intervalAt(routine))

	// 15:05 is inside the 15-minute window before the 15:20 cutoff.
	preClose := marketTime(t, monitor, 15, 5)
	assert.Equal(t, monitor.cfg.PreCloseInterval, monitor.intervalAt(preClose))

	afterCutoff := marketTime(t, monitor, 15, 25)
	assert.Equal(t, monitor.cfg.RoutineInterval, monitor.intervalAt(afterCutoff))
}

func TestMonitorLifecycle(t *testing.T) {
	monitor, _, _, _ := newTestMonitor(t)
	ctx := context.Background()

	assert.Equal(t, MonitorIdle, monitor.State())
	require.NoError(t, monitor.Start(ctx))
	assert.Equal(t, MonitorRunning, monitor.State())

	assert.Error(t, monitor.Start(ctx))

	monitor.Stop()
	assert.Equal(t, MonitorStopped, monitor.State())

	// Stop is idempotent and a stopped monitor cannot restart.
	monitor.Stop()
	assert.Error(t, monitor.Start(ctx))
}

func TestMonitorConfigDefaults(t *testing.T) {
	engine, _, _ := newTestEngine(t, 100000)
	session := NewSessionClock(15, 20, 15*time.Minute)

	monitor := NewMonitor(MonitorConfig{
		RoutineInterval:  10 * time.Second,
		PreCloseInterval: 5 * time.Second,
	}, engine, broker.NewMemorySource(), session, zerolog.Nop())

	// Unset fetch settings fall back to the shared retry defaults.
	defaults := utils.DefaultRetryConfig()
	assert.Equal(t, defaults.MaxAttempts, monitor.cfg.PriceRetries)
	assert.Equal(t, defaults.InitialDelay, monitor.cfg.PriceRetryDelay)
	assert.Equal(t, defaults.MaxDelay, monitor.cfg.PriceTimeout)
	assert.Equal(t, 4, monitor.cfg.Workers)
}

func TestMonitorStopWithoutStart(t *testing.T) {
	monitor, _, _, _ := newTestMonitor(t)
	monitor.Stop()
	assert.Equal(t, MonitorStopped, monitor.State())
}

func TestSessionClock(t *testing.T) {
	session := NewSessionClock(15, 20, 15*time.Minute)
	loc := session.Location()

	monday := time.Date(2025, 1, 6, 10, 0, 0, 0, loc)
	assert.True(t, session.IsTradingDay(monday))
	assert.True(t, session.IsMarketOpen(monday))

	assert.False(t, session.IsMarketOpen(time.Date(2025, 1, 6, 9, 14, 0, 0, loc)))
	assert.True(t, session.IsMarketOpen(time.Date(2025, 1, 6, 9, 15, 0, 0, loc)))
	assert.False(t, session.IsMarketOpen(time.Date(2025, 1, 6, 15, 30, 0, 0, loc)))

	saturday := time.Date(2025, 1, 4, 10, 0, 0, 0, loc)
	assert.False(t, session.IsTradingDay(saturday))

	session.AddHoliday(time.Date(2025, 1, 26, 0, 0, 0, 0, loc))
	assert.False(t, session.IsTradingDay(time.Date(2025, 1, 26, 10, 0, 0, 0, loc)))

	cutoff := session.SquareOffAt(monday)
	assert.Equal(t, 15, cutoff.Hour())
	assert.Equal(t, 20, cutoff.Minute())

	assert.True(t, session.InPreCloseWindow(time.Date(2025, 1, 6, 15, 10, 0, 0, loc)))
	assert.False(t, session.InPreCloseWindow(time.Date(2025, 1, 6, 15, 20, 0, 0, loc)))
	assert.False(t, session.InPreCloseWindow(time.Date(2025, 1, 6, 14, 0, 0, 0, loc)))
}

func TestSessionClockStatus(t *testing.T) {
	session := NewSessionClock(15, 20, 15*time.Minute)
	loc := session.Location()

	tests := []struct {
		name string
		at   time.Time
		want models.MarketStatus
	}{
		{"pre-open", time.Date(2025, 1, 6, 8, 0, 0, 0, loc), models.MarketPreOpen},
		{"normal session", time.Date(2025, 1, 6, 11, 0, 0, 0, loc), models.MarketOpen},
		{"pre-close window", time.Date(2025, 1, 6, 15, 10, 0, 0, loc), models.MarketSquareOffWarning},
		{"between cutoff and close", time.Date(2025, 1, 6, 15, 25, 0, 0, loc), models.MarketOpen},
		{"after close", time.Date(2025, 1, 6, 16, 0, 0, 0, loc), models.MarketClosed},
		{"weekend", time.Date(2025, 1, 4, 11, 0, 0, 0, loc), models.MarketClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, session.Status(tt.at))
		})
	}
}
