// Package broker provides price source implementations.
package broker

import (
	"context"

	"paper-trader/internal/models"
)

// PriceSource supplies the last traded price for an instrument. A source
// must never fabricate a value: when no live data is available it returns
// an error matching errors.ErrPriceUnavailable instead of zero or an
// unmarked stale price.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string, exchange models.Exchange) (float64, error)
}

// QuoteSource is an optional extension for sources that can serve full quotes.
type QuoteSource interface {
	PriceSource
	Quote(ctx context.Context, symbol string, exchange models.Exchange) (*models.Quote, error)
}

// PriceFunc adapts a plain function to the PriceSource interface.
type PriceFunc func(ctx context.Context, symbol string, exchange models.Exchange) (float64, error)

// LastPrice implements PriceSource.
func (f PriceFunc) LastPrice(ctx context.Context, symbol string, exchange models.Exchange) (float64, error) {
	return f(ctx, symbol, exchange)
}
