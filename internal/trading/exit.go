// Package trading provides the paper trading engine: position book,
// exit evaluation and the monitor scheduler.
package trading

import (
	"time"

	"paper-trader/internal/models"
)

// PriceSample carries the outcome of a price fetch for one symbol.
// LastKnown holds the most recent successfully fetched price, zero when no
// quote has ever been seen for the symbol.
type PriceSample struct {
	Value     float64
	OK        bool
	LastKnown float64
}

// Decision is an exit decision produced by Evaluate.
type Decision struct {
	Reason models.ExitReason
	Price  float64
}

// Evaluate decides whether a position must exit given the current price
// sample and wall-clock time. It is a pure function with no side effects.
//
// Precedence:
//  1. at or past the square-off cutoff the position always closes, falling
//     back to the last known price when no live quote is available;
//  2. without a live quote there is no decision this cycle — a synthetic
//     price is never substituted for a real one;
//  3. stop-loss before target, so a gap across both levels resolves to the
//     worse outcome.
func Evaluate(pos *models.Position, sample PriceSample, now, squareOffAt time.Time) (Decision, bool) {
	if !now.Before(squareOffAt) {
		if sample.OK {
			return Decision{Reason: models.ExitAutoSquareOff, Price: sample.Value}, true
		}
		price := sample.LastKnown
		if price <= 0 {
			// No quote was ever seen. The entry price is the only number
			// left; the reason flag marks the exit price as best-effort.
			price = pos.EntryPrice
		}
		return Decision{Reason: models.ExitPriceUnavailableForced, Price: price}, true
	}

	if !sample.OK {
		return Decision{}, false
	}

	price := sample.Value
	switch pos.Side {
	case models.SideShort:
		if price >= pos.StopLoss {
			return Decision{Reason: models.ExitStopLoss, Price: price}, true
		}
		if price <= pos.Target {
			return Decision{Reason: models.ExitTarget, Price: price}, true
		}
	default:
		if price <= pos.StopLoss {
			return Decision{Reason: models.ExitStopLoss, Price: price}, true
		}
		if price >= pos.Target {
			return Decision{Reason: models.ExitTarget, Price: price}, true
		}
	}

	return Decision{}, false
}
