package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"paper-trader/internal/broker"
	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/logging"
	"paper-trader/internal/models"
	"paper-trader/internal/performance"
	"paper-trader/pkg/utils"
)

// MonitorState is the lifecycle state of the monitor.
type MonitorState int32

const (
	MonitorIdle MonitorState = iota
	MonitorRunning
	MonitorStopped
)

// String returns the state name.
func (s MonitorState) String() string {
	switch s {
	case MonitorIdle:
		return "IDLE"
	case MonitorRunning:
		return "RUNNING"
	case MonitorStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("MonitorState(%d)", int32(s))
	}
}

// MonitorConfig holds monitor scheduling configuration.
type MonitorConfig struct {
	RoutineInterval  time.Duration
	PreCloseInterval time.Duration
	PriceTimeout     time.Duration
	PriceRetries     int
	PriceRetryDelay  time.Duration
	Workers          int
}

// Monitor drives the periodic evaluation of open positions: the routine
// check during market hours, the tighter pre-close cadence, and the
// mandatory square-off at the cutoff. All exits it produces go through
// the engine's single close path.
type Monitor struct {
	cfg     MonitorConfig
	engine  *Engine
	source  broker.PriceSource
	session *SessionClock
	pool    *performance.WorkerPool
	logger  zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state MonitorState
	stop  chan struct{}
	done  chan struct{}
	cycle uint64

	lkMu      sync.RWMutex
	lastKnown map[string]float64
}

// NewMonitor creates a monitor over the engine and price source. Unset
// fetch settings fall back to the shared retry defaults.
func NewMonitor(cfg MonitorConfig, engine *Engine, source broker.PriceSource, session *SessionClock, logger zerolog.Logger) *Monitor {
	retryDefaults := utils.DefaultRetryConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PriceRetries < 1 {
		cfg.PriceRetries = retryDefaults.MaxAttempts
	}
	if cfg.PriceRetryDelay <= 0 {
		cfg.PriceRetryDelay = retryDefaults.InitialDelay
	}
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = retryDefaults.MaxDelay
	}
	return &Monitor{
		cfg:       cfg,
		engine:    engine,
		source:    source,
		session:   session,
		pool:      performance.NewWorkerPool(cfg.Workers),
		logger:    logger.With().Str("component", "monitor").Logger(),
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		lastKnown: make(map[string]float64),
	}
}

// SetClock overrides the monitor's wall clock.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// State returns the current lifecycle state.
func (m *Monitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start transitions the monitor from idle to running and begins cycling
// in the background. A monitor can be started once.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case MonitorRunning:
		return fmt.Errorf("monitor already running")
	case MonitorStopped:
		return fmt.Errorf("monitor already stopped")
	}
	m.state = MonitorRunning
	m.pool.Start()

	go m.run(ctx)
	m.logger.Info().Msg("Monitor started")
	return nil
}

// Stop shuts the monitor down cooperatively: no new cycle starts, the
// in-flight cycle finishes before Stop returns. Stopping an idle or
// already-stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != MonitorRunning {
		if m.state == MonitorIdle {
			m.state = MonitorStopped
		}
		m.mu.Unlock()
		return
	}
	m.state = MonitorStopped
	close(m.stop)
	m.mu.Unlock()

	<-m.done
	m.pool.Stop()
	m.logger.Info().Msg("Monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		timer := time.NewTimer(m.intervalAt(m.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-m.stop:
			timer.Stop()
			return
		case <-timer.C:
			m.RunCycle(ctx)
		}
	}
}

// intervalAt picks the cadence for the next cycle: the tighter pre-close
// interval inside the pre-close window, the routine interval otherwise.
func (m *Monitor) intervalAt(now time.Time) time.Duration {
	if m.session.InPreCloseWindow(now) {
		return m.cfg.PreCloseInterval
	}
	return m.cfg.RoutineInterval
}

// RunCycle evaluates every open position once and applies any exits. It
// returns the trades closed this cycle.
func (m *Monitor) RunCycle(ctx context.Context) []models.ClosedTrade {
	now := m.now()
	if !m.session.IsTradingDay(now) {
		return nil
	}
	// Before the open there is nothing to do; after the cutoff cycles
	// still run so lingering positions get squared off.
	if !m.session.IsMarketOpen(now) && now.Before(m.session.SquareOffAt(now)) {
		return nil
	}

	positions := m.engine.Positions()
	if len(positions) == 0 {
		return nil
	}

	m.mu.Lock()
	m.cycle++
	cycle := m.cycle
	m.mu.Unlock()

	logger := logging.WithCycle(m.logger, cycle)
	prices := m.fetchPrices(ctx, positions, logger)
	squareOffAt := m.session.SquareOffAt(now)

	var closed []models.ClosedTrade
	for _, pos := range positions {
		pos := pos
		sample := prices[positionKey(&pos)]

		decision, exit := Evaluate(&pos, sample, now, squareOffAt)
		if !exit {
			if !sample.OK {
				symLogger := logging.WithSymbol(logger, pos.Symbol)
				symLogger.Warn().Msg("Price unavailable, skipping this cycle")
			}
			continue
		}

		trade, err := m.engine.CloseWithReason(ctx, pos.Symbol, decision.Price, decision.Reason, cycle)
		if err != nil {
			// A manual close can race a monitor exit; exactly one wins.
			if apperrors.Is(err, apperrors.ErrPositionNotFound) {
				logger.Debug().Str("symbol", pos.Symbol).Msg("Position already closed")
			} else {
				logger.Error().Err(err).Str("symbol", pos.Symbol).Msg("Monitor close failed")
			}
			continue
		}
		closed = append(closed, *trade)
	}

	return closed
}

// fetchPrices fetches prices for all positions concurrently. Fetches never
// run under the position book's lock, and each symbol gets its own timeout
// and bounded retries, so a slow quote cannot starve the cycle.
func (m *Monitor) fetchPrices(ctx context.Context, positions []models.Position, logger zerolog.Logger) map[string]PriceSample {
	results := make(map[string]PriceSample, len(positions))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, pos := range positions {
		pos := pos
		key := positionKey(&pos)
		wg.Add(1)

		task := func() {
			defer wg.Done()
			sample := m.fetchOne(ctx, &pos, logger)

			resultsMu.Lock()
			results[key] = sample
			resultsMu.Unlock()
		}
		if !m.pool.Submit(task) {
			task()
		}
	}
	wg.Wait()

	return results
}

// fetchOne fetches a single symbol's price with timeout and retries.
// Exhausted retries yield an unavailable sample for this cycle only.
func (m *Monitor) fetchOne(ctx context.Context, pos *models.Position, logger zerolog.Logger) PriceSample {
	key := positionKey(pos)

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.PriceTimeout)
	defer cancel()

	started := time.Now()
	price, err := utils.RetryWithResult(fetchCtx, utils.RetryConfig{
		MaxAttempts:   m.cfg.PriceRetries,
		InitialDelay:  m.cfg.PriceRetryDelay,
		MaxDelay:      m.cfg.PriceTimeout,
		BackoffFactor: 2.0,
	}, func() (float64, error) {
		return m.source.LastPrice(fetchCtx, pos.Symbol, pos.Exchange)
	})
	logging.LogPriceFetch(logger, pos.Symbol, time.Since(started), err)

	m.lkMu.Lock()
	defer m.lkMu.Unlock()

	if err != nil {
		return PriceSample{LastKnown: m.lastKnown[key]}
	}
	m.lastKnown[key] = price
	return PriceSample{Value: price, OK: true, LastKnown: price}
}

func positionKey(pos *models.Position) string {
	return fmt.Sprintf("%s:%s", pos.Exchange, pos.Symbol)
}
