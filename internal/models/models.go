// Package models provides domain models for the paper trading engine.
package models

import (
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO" // F&O
	CDS Exchange = "CDS" // Currency
	MCX Exchange = "MCX" // Commodity
)

// Side represents the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStopLoss ExitReason = "STOP_LOSS"
	ExitTarget   ExitReason = "TARGET"
	// ExitAutoSquareOff marks the mandatory end-of-day close.
	ExitAutoSquareOff ExitReason = "AUTO_SQUARE_OFF"
	ExitManual        ExitReason = "MANUAL_EXIT"
	// ExitPriceUnavailableForced marks a square-off that had to fall back to
	// the last known price because no live quote was available. Reporting
	// must be able to tell this apart from a confident exit price.
	ExitPriceUnavailableForced ExitReason = "PRICE_UNAVAILABLE_FORCE_EXIT"
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen             MarketStatus = "OPEN"
	MarketPreOpen          MarketStatus = "PRE_OPEN"
	MarketClosed           MarketStatus = "CLOSED"
	MarketSquareOffWarning MarketStatus = "SQUAREOFF_WARNING"
)

// Quote represents a market quote.
type Quote struct {
	Symbol        string
	Exchange      Exchange
	LTP           float64
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        int64
	Change        float64
	ChangePercent float64
	Timestamp     time.Time
}

// Tick represents real-time market data.
type Tick struct {
	Symbol    string
	Exchange  Exchange
	LTP       float64
	Volume    int64
	Timestamp time.Time
}
