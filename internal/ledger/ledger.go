// Package ledger provides the capital and margin ledger for the paper
// trading engine. The ledger is the single source of truth for capital
// numbers: cash and used margin only ever move between each other, plus
// the signed P&L credited to cash when a position closes.
package ledger

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	apperrors "paper-trader/internal/errors"
)

// tolerance absorbs float64 rounding in the conservation check.
const tolerance = 1e-6

// Ledger tracks cash, used margin and leverage. All mutations are
// single-writer behind the mutex. A detected accounting defect halts the
// ledger permanently: further mutations are refused while reads keep
// working for postmortem.
type Ledger struct {
	mu             sync.RWMutex
	initialCapital float64
	leverage       float64
	cash           float64
	usedMargin     float64
	realizedPnL    float64
	haltCause      error
	logger         zerolog.Logger
}

// Snapshot is a consistent point-in-time copy of the ledger figures.
type Snapshot struct {
	Cash            float64
	UsedMargin      float64
	AvailableMargin float64
	RealizedPnL     float64
	InitialCapital  float64
	Leverage        float64
	Halted          bool
}

// New creates a ledger from explicit, validated parameters.
func New(initialCapital, leverage float64, logger zerolog.Logger) (*Ledger, error) {
	if initialCapital <= 0 {
		return nil, apperrors.NewValidationError("initial_capital", initialCapital, "must be positive")
	}
	if leverage < 1 {
		return nil, apperrors.NewValidationError("leverage", leverage, "must be at least 1")
	}
	return &Ledger{
		initialCapital: initialCapital,
		leverage:       leverage,
		cash:           initialCapital,
		logger:         logger.With().Str("component", "ledger").Logger(),
	}, nil
}

// RequiredMargin returns the margin to reserve for an entry at the given
// price and quantity.
func (l *Ledger) RequiredMargin(price float64, quantity int) float64 {
	return price * float64(quantity) / l.leverage
}

// Reserve moves amount from cash to used margin. It fails with
// ErrInsufficientMargin, without side effects, when cash cannot cover the
// amount.
func (l *Ledger) Reserve(amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.haltCause != nil {
		return l.haltCause
	}
	if amount <= 0 {
		return apperrors.NewValidationError("amount", amount, "must be positive")
	}
	if l.cash-amount < -tolerance {
		return apperrors.ErrInsufficientMargin
	}

	l.cash -= amount
	l.usedMargin += amount
	l.logger.Debug().
		Float64("reserved", amount).
		Float64("cash", l.cash).
		Float64("used_margin", l.usedMargin).
		Msg("Margin reserved")

	return l.verifyLocked("reserve")
}

// Release returns amount from used margin to cash and credits the signed
// pnl. Releasing more than the current used margin is a margin-accounting
// bug, not a runtime condition: the ledger halts.
func (l *Ledger) Release(amount, pnl float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.haltCause != nil {
		return l.haltCause
	}
	if amount-l.usedMargin > tolerance {
		err := apperrors.NewLedgerError("release", amount, l.usedMargin, l.cash)
		l.haltLocked(err)
		return err
	}

	l.usedMargin -= amount
	l.cash += amount + pnl
	l.realizedPnL += pnl
	l.logger.Debug().
		Float64("released", amount).
		Float64("pnl", pnl).
		Float64("cash", l.cash).
		Float64("used_margin", l.usedMargin).
		Msg("Margin released")

	return l.verifyLocked("release")
}

// verifyLocked checks capital conservation after a mutation. Drift means a
// logic defect somewhere upstream; the ledger refuses to proceed.
func (l *Ledger) verifyLocked(op string) error {
	expected := l.initialCapital + l.realizedPnL
	actual := l.cash + l.usedMargin
	if math.Abs(actual-expected) > tolerance || l.usedMargin < -tolerance {
		err := apperrors.NewLedgerError(op, expected-actual, l.usedMargin, l.cash)
		l.haltLocked(err)
		return err
	}
	return nil
}

func (l *Ledger) haltLocked(err error) {
	l.haltCause = err
	l.logger.Error().Err(err).Msg("Ledger halted")
}

// Cash returns capital not currently reserved as margin.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// UsedMargin returns the sum of margin reserved by open positions.
func (l *Ledger) UsedMargin() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.usedMargin
}

// AvailableMargin returns the cash available for new reservations.
func (l *Ledger) AvailableMargin() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// RealizedPnL returns the cumulative realized profit since construction.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realizedPnL
}

// Leverage returns the entry-margin leverage multiplier.
func (l *Ledger) Leverage() float64 {
	return l.leverage
}

// Halted reports whether the ledger refused further mutations, and why.
func (l *Ledger) Halted() (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.haltCause != nil, l.haltCause
}

// Snapshot returns a consistent copy of the current figures.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Cash:            l.cash,
		UsedMargin:      l.usedMargin,
		AvailableMargin: l.cash,
		RealizedPnL:     l.realizedPnL,
		InitialCapital:  l.initialCapital,
		Leverage:        l.leverage,
		Halted:          l.haltCause != nil,
	}
}
