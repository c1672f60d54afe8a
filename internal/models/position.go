package models

import "time"

// Position is an open simulated trade. EntryPrice and EntryTime are fixed at
// entry; MarginUsed is reserved at entry and released in full only on close.
type Position struct {
	Symbol     string
	Exchange   Exchange
	Side       Side
	Quantity   int
	EntryPrice float64
	EntryTime  time.Time
	StopLoss   float64
	Target     float64
	MarginUsed float64
}

// PnLAt returns the signed profit for the position at the given price.
func (p *Position) PnLAt(price float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - price) * float64(p.Quantity)
	}
	return (price - p.EntryPrice) * float64(p.Quantity)
}

// PnLPercentAt returns the profit at the given price as a percentage of the
// entry notional.
func (p *Position) PnLPercentAt(price float64) float64 {
	notional := p.EntryPrice * float64(p.Quantity)
	if notional == 0 {
		return 0
	}
	return p.PnLAt(price) / notional * 100
}

// ClosedTrade is the immutable record produced when a position closes.
// It is created exactly once per position and appended to the journal.
type ClosedTrade struct {
	Symbol     string     `csv:"symbol"`
	Exchange   Exchange   `csv:"exchange"`
	Side       Side       `csv:"side"`
	Quantity   int        `csv:"quantity"`
	EntryPrice float64    `csv:"entry_price"`
	EntryTime  time.Time  `csv:"entry_time"`
	ExitPrice  float64    `csv:"exit_price"`
	ExitTime   time.Time  `csv:"exit_time"`
	ExitReason ExitReason `csv:"exit_reason"`
	PnL        float64    `csv:"pnl"`
	PnLPercent float64    `csv:"pnl_pct"`
}

// CloseAt builds the ClosedTrade record for this position at the given exit.
func (p *Position) CloseAt(price float64, reason ExitReason, at time.Time) ClosedTrade {
	return ClosedTrade{
		Symbol:     p.Symbol,
		Exchange:   p.Exchange,
		Side:       p.Side,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		EntryTime:  p.EntryTime,
		ExitPrice:  price,
		ExitTime:   at,
		ExitReason: reason,
		PnL:        p.PnLAt(price),
		PnLPercent: p.PnLPercentAt(price),
	}
}
