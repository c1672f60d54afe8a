package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPnLAt(t *testing.T) {
	tests := []struct {
		name  string
		side  Side
		entry float64
		price float64
		qty   int
		want  float64
	}{
		{"long gain", SideLong, 100, 110, 10, 100},
		{"long loss", SideLong, 100, 95, 10, -50},
		{"long flat", SideLong, 100, 100, 10, 0},
		{"short gain", SideShort, 100, 90, 10, 100},
		{"short loss", SideShort, 100, 105, 10, -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Position{Side: tt.side, EntryPrice: tt.entry, Quantity: tt.qty}
			assert.Equal(t, tt.want, p.PnLAt(tt.price))
		})
	}
}

func TestPnLPercentAt(t *testing.T) {
	p := Position{Side: SideLong, EntryPrice: 100, Quantity: 10}
	assert.Equal(t, 10.0, p.PnLPercentAt(110))
	assert.Equal(t, -5.0, p.PnLPercentAt(95))

	zero := Position{Side: SideLong, EntryPrice: 0, Quantity: 10}
	assert.Equal(t, 0.0, zero.PnLPercentAt(50))
}

func TestCloseAt(t *testing.T) {
	entered := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	exited := entered.Add(2 * time.Hour)

	p := Position{
		Symbol:     "RELIANCE",
		Exchange:   NSE,
		Side:       SideLong,
		Quantity:   10,
		EntryPrice: 100,
		EntryTime:  entered,
		StopLoss:   95,
		Target:     110,
		MarginUsed: 200,
	}

	trade := p.CloseAt(110, ExitTarget, exited)
	assert.Equal(t, "RELIANCE", trade.Symbol)
	assert.Equal(t, 110.0, trade.ExitPrice)
	assert.Equal(t, exited, trade.ExitTime)
	assert.Equal(t, ExitTarget, trade.ExitReason)
	assert.Equal(t, 100.0, trade.PnL)
	assert.Equal(t, 10.0, trade.PnLPercent)
	assert.Equal(t, entered, trade.EntryTime)
}
