package trading

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/ledger"
	"paper-trader/internal/models"
)

// OpenRequest holds the parameters for opening a position.
type OpenRequest struct {
	Symbol   string
	Exchange models.Exchange
	Side     models.Side
	Quantity int
	Price    float64
	StopLoss float64
	Target   float64
}

// Validate checks the request against the position invariants.
func (r *OpenRequest) Validate() error {
	if r.Symbol == "" {
		return apperrors.NewValidationError("symbol", r.Symbol, "must not be empty")
	}
	if r.Side != models.SideLong && r.Side != models.SideShort {
		return apperrors.NewValidationError("side", r.Side, "must be LONG or SHORT")
	}
	if r.Quantity <= 0 {
		return apperrors.NewValidationError("quantity", r.Quantity, "must be positive")
	}
	if r.Price <= 0 {
		return apperrors.NewValidationError("price", r.Price, "must be positive")
	}
	if r.StopLoss <= 0 {
		return apperrors.NewValidationError("stop_loss", r.StopLoss, "must be set")
	}
	if r.Target <= 0 {
		return apperrors.NewValidationError("target", r.Target, "must be set")
	}
	switch r.Side {
	case models.SideLong:
		if !(r.StopLoss < r.Price && r.Price < r.Target) {
			return apperrors.NewValidationError("stop_loss/target", r.StopLoss,
				"long position requires stop_loss < entry < target")
		}
	case models.SideShort:
		if !(r.Target < r.Price && r.Price < r.StopLoss) {
			return apperrors.NewValidationError("stop_loss/target", r.StopLoss,
				"short position requires target < entry < stop_loss")
		}
	}
	return nil
}

// PositionBook is the authoritative table of open simulated positions,
// keyed by symbol with at most one open position per symbol. State
// transitions (open, close) are atomic with the margin movements they
// cause; mutations are single-writer, snapshots are multi-reader.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]*models.Position
	ledger    *ledger.Ledger
	logger    zerolog.Logger
}

// NewPositionBook creates an empty position book backed by the given ledger.
func NewPositionBook(l *ledger.Ledger, logger zerolog.Logger) *PositionBook {
	return &PositionBook{
		positions: make(map[string]*models.Position),
		ledger:    l,
		logger:    logger.With().Str("component", "positions").Logger(),
	}
}

// Open validates the request, reserves margin and records the position.
// Exactly one position per symbol: a second open on the same symbol fails
// with ErrDuplicatePosition.
func (b *PositionBook) Open(req OpenRequest, at time.Time) (*models.Position, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if halted, cause := b.ledger.Halted(); halted {
		return nil, apperrors.Wrap(cause, "open refused")
	}
	if _, exists := b.positions[req.Symbol]; exists {
		return nil, apperrors.Wrapf(apperrors.ErrDuplicatePosition, "open %s", req.Symbol)
	}

	margin := b.ledger.RequiredMargin(req.Price, req.Quantity)
	if err := b.ledger.Reserve(margin); err != nil {
		return nil, err
	}

	pos := &models.Position{
		Symbol:     req.Symbol,
		Exchange:   req.Exchange,
		Side:       req.Side,
		Quantity:   req.Quantity,
		EntryPrice: req.Price,
		EntryTime:  at,
		StopLoss:   req.StopLoss,
		Target:     req.Target,
		MarginUsed: margin,
	}
	b.positions[req.Symbol] = pos

	out := *pos
	return &out, nil
}

// Close transitions the position for symbol from open to closed, releasing
// its margin and crediting the realized P&L. A close on a symbol with no
// open position returns ErrPositionNotFound, which also makes a second
// concurrent close a no-op: exactly one ClosedTrade per position, never a
// double credit.
func (b *PositionBook) Close(symbol string, exitPrice float64, reason models.ExitReason, at time.Time) (*models.ClosedTrade, error) {
	if exitPrice <= 0 {
		return nil, apperrors.NewValidationError("exit_price", exitPrice, "must be positive")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if halted, cause := b.ledger.Halted(); halted {
		return nil, apperrors.Wrap(cause, "close refused")
	}

	pos, exists := b.positions[symbol]
	if !exists {
		return nil, apperrors.Wrapf(apperrors.ErrPositionNotFound, "close %s", symbol)
	}

	trade := pos.CloseAt(exitPrice, reason, at)
	delete(b.positions, symbol)

	if err := b.ledger.Release(pos.MarginUsed, trade.PnL); err != nil {
		// Accounting defect: the ledger has halted itself. The position
		// stays removed; the engine stops mutating from here on.
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("Margin release failed")
		return nil, err
	}

	return &trade, nil
}

// Get returns a copy of the open position for symbol, if any.
func (b *PositionBook) Get(symbol string) (*models.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.positions[symbol]
	if !ok {
		return nil, false
	}
	out := *pos
	return &out, true
}

// Len returns the number of open positions.
func (b *PositionBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Snapshot returns a consistent point-in-time copy of all open positions,
// ordered by entry time then symbol. Iterating the snapshot can never
// observe a half-updated position.
func (b *PositionBook) Snapshot() []models.Position {
	b.mu.RLock()
	out := b.copyLocked()
	b.mu.RUnlock()

	sortPositions(out)
	return out
}

// SnapshotWithCapital returns the open positions and the ledger figures as
// one point-in-time view. Both are read while holding the book lock, so a
// close cannot land between the two reads and show a position as open with
// its margin already released.
func (b *PositionBook) SnapshotWithCapital() ([]models.Position, ledger.Snapshot) {
	b.mu.RLock()
	out := b.copyLocked()
	ls := b.ledger.Snapshot()
	b.mu.RUnlock()

	sortPositions(out)
	return out, ls
}

func (b *PositionBook) copyLocked() []models.Position {
	out := make([]models.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	return out
}

func sortPositions(out []models.Position) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
}
