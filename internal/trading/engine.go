package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"paper-trader/internal/broker"
	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/journal"
	"paper-trader/internal/ledger"
	"paper-trader/internal/logging"
	"paper-trader/internal/models"
	"paper-trader/internal/stream"
)

// Journal is the slice of the trade journal the engine writes to and
// summarizes from.
type Journal interface {
	AppendTrade(ctx context.Context, trade models.ClosedTrade) error
	AppendCapitalSnapshot(ctx context.Context, snap journal.CapitalSnapshot) error
	Summary(ctx context.Context) (*journal.Summary, error)
}

// Snapshot is a point-in-time view of the engine for the control layer.
type Snapshot struct {
	Positions       []models.Position
	Cash            float64
	UsedMargin      float64
	AvailableMargin float64
	RealizedPnL     float64
	Halted          bool
}

// Engine ties the position book, capital ledger, journal and event hub
// together. Every mutation, whether from the monitor or a manual action,
// flows through the same book transition so there is one path of truth.
type Engine struct {
	book    *PositionBook
	ledger  *ledger.Ledger
	journal Journal
	hub     *stream.Hub
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine creates an engine over the given collaborators. hub may be nil
// when no one consumes exit events.
func NewEngine(l *ledger.Ledger, j Journal, hub *stream.Hub, logger zerolog.Logger) *Engine {
	return &Engine{
		book:    NewPositionBook(l, logger),
		ledger:  l,
		journal: j,
		hub:     hub,
		logger:  logger.With().Str("component", "engine").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the engine's wall clock.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// OpenPosition opens a simulated position, reserving its margin.
func (e *Engine) OpenPosition(ctx context.Context, req OpenRequest) (*models.Position, error) {
	pos, err := e.book.Open(req, e.now())
	if err != nil {
		return nil, err
	}

	logging.LogEntry(e.logger, pos.Symbol, string(pos.Side), pos.Quantity, pos.EntryPrice, pos.MarginUsed)
	return pos, nil
}

// ClosePosition closes the open position for symbol at the given price.
// This is the manual exit path; the monitor uses the same transition via
// CloseWithReason.
func (e *Engine) ClosePosition(ctx context.Context, symbol string, price float64) (*models.ClosedTrade, error) {
	return e.CloseWithReason(ctx, symbol, price, models.ExitManual, 0)
}

// CloseWithReason closes the open position for symbol, journals the trade
// and publishes the exit event. cycle tags monitor-driven exits; manual
// closes pass zero.
func (e *Engine) CloseWithReason(ctx context.Context, symbol string, price float64, reason models.ExitReason, cycle uint64) (*models.ClosedTrade, error) {
	trade, err := e.book.Close(symbol, price, reason, e.now())
	if err != nil {
		return nil, err
	}

	logging.LogExit(e.logger, trade.Symbol, string(trade.ExitReason), trade.ExitPrice, trade.PnL)

	// The close stands even if journaling fails; history is for reporting
	// and must not resurrect a position.
	if e.journal != nil {
		if err := e.journal.AppendTrade(ctx, *trade); err != nil {
			e.logger.Error().Err(err).Str("symbol", symbol).Msg("Journal append failed")
		}
	}
	if e.hub != nil {
		e.hub.Publish(stream.ExitEvent{Trade: *trade, Cycle: cycle})
	}
	return trade, nil
}

// SquareOffAll force-closes every open position using prices from lookup.
// Positions whose price cannot be fetched are still closed, at the entry
// price, flagged PRICE_UNAVAILABLE_FORCE_EXIT.
func (e *Engine) SquareOffAll(ctx context.Context, lookup broker.PriceSource) []models.ClosedTrade {
	var closed []models.ClosedTrade
	now := e.now()

	for _, pos := range e.book.Snapshot() {
		pos := pos
		sample := PriceSample{}
		if lookup != nil {
			if price, err := lookup.LastPrice(ctx, pos.Symbol, pos.Exchange); err == nil {
				sample = PriceSample{Value: price, OK: true}
			}
		}

		// Evaluating against a cutoff of "now" forces rule 1: every
		// position closes, with or without a live quote.
		decision, _ := Evaluate(&pos, sample, now, now)
		trade, err := e.CloseWithReason(ctx, pos.Symbol, decision.Price, decision.Reason, 0)
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrPositionNotFound) {
				e.logger.Error().Err(err).Str("symbol", pos.Symbol).Msg("Square-off close failed")
			}
			continue
		}
		closed = append(closed, *trade)
	}

	if len(closed) > 0 {
		e.RecordCapitalSnapshot(ctx)
	}
	return closed
}

// RecordCapitalSnapshot appends the current capital figures to the journal.
func (e *Engine) RecordCapitalSnapshot(ctx context.Context) {
	if e.journal == nil {
		return
	}
	ls := e.ledger.Snapshot()
	snap := journal.CapitalSnapshot{
		Cash:          ls.Cash,
		UsedMargin:    ls.UsedMargin,
		RealizedPnL:   ls.RealizedPnL,
		OpenPositions: e.book.Len(),
		TakenAt:       e.now(),
	}
	if err := e.journal.AppendCapitalSnapshot(ctx, snap); err != nil {
		e.logger.Error().Err(err).Msg("Capital snapshot append failed")
	}
}

// Snapshot returns a single point-in-time view of open positions and
// capital: the two halves can never disagree about an in-flight close.
func (e *Engine) Snapshot() Snapshot {
	positions, ls := e.book.SnapshotWithCapital()
	return Snapshot{
		Positions:       positions,
		Cash:            ls.Cash,
		UsedMargin:      ls.UsedMargin,
		AvailableMargin: ls.AvailableMargin,
		RealizedPnL:     ls.RealizedPnL,
		Halted:          ls.Halted,
	}
}

// Positions returns a snapshot of the open positions.
func (e *Engine) Positions() []models.Position {
	return e.book.Snapshot()
}

// Summary returns aggregate statistics derived from the journal.
func (e *Engine) Summary(ctx context.Context) (*journal.Summary, error) {
	if e.journal == nil {
		return &journal.Summary{ByReason: map[models.ExitReason]int{}}, nil
	}
	return e.journal.Summary(ctx)
}

// Halted reports whether the engine refuses mutations because of a ledger
// accounting defect.
func (e *Engine) Halted() (bool, error) {
	return e.ledger.Halted()
}
