package broker

import (
	"context"
	"sync"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// MemorySource is an in-memory price source fed by ticks. It backs paper
// runs without broker credentials and the test suites. Symbols without a
// recorded tick report price-unavailable; nothing is ever synthesized.
type MemorySource struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewMemorySource creates an empty in-memory price source.
func NewMemorySource() *MemorySource {
	return &MemorySource{prices: make(map[string]float64)}
}

// SetPrice records the last traded price for a symbol.
func (m *MemorySource) SetPrice(symbol string, exchange models.Exchange, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[instrumentKey(symbol, exchange)] = price
}

// ClearPrice removes the recorded price for a symbol, making subsequent
// lookups fail with price-unavailable.
func (m *MemorySource) ClearPrice(symbol string, exchange models.Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prices, instrumentKey(symbol, exchange))
}

// ProcessTick updates the recorded price from a live tick.
func (m *MemorySource) ProcessTick(tick models.Tick) {
	m.SetPrice(tick.Symbol, tick.Exchange, tick.LTP)
}

// LastPrice returns the recorded price for a symbol.
func (m *MemorySource) LastPrice(ctx context.Context, symbol string, exchange models.Exchange) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewPriceError(symbol, string(exchange), err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.prices[instrumentKey(symbol, exchange)]
	if !ok || price <= 0 {
		return 0, apperrors.NewPriceError(symbol, string(exchange), nil)
	}
	return price, nil
}

var _ PriceSource = (*MemorySource)(nil)
