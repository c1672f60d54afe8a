package journal

import (
	"context"
	"math"

	"paper-trader/internal/models"
)

// Summary holds aggregate statistics over the journaled trades.
type Summary struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64 // percent
	TotalPnL     float64
	ProfitFactor float64
	AverageWin   float64
	AverageLoss  float64
	BestTrade    float64
	WorstTrade   float64
	ByReason     map[models.ExitReason]int
}

// Summary computes aggregate statistics over the whole journal.
func (j *Journal) Summary(ctx context.Context) (*Summary, error) {
	return j.SummaryFiltered(ctx, TradeFilter{})
}

// SummaryFiltered computes aggregate statistics over trades matching the
// filter.
func (j *Journal) SummaryFiltered(ctx context.Context, filter TradeFilter) (*Summary, error) {
	trades, err := j.Trades(ctx, filter)
	if err != nil {
		return nil, err
	}

	s := &Summary{ByReason: make(map[models.ExitReason]int)}
	var grossProfit, grossLoss float64

	for i, t := range trades {
		s.TotalTrades++
		s.TotalPnL += t.PnL
		s.ByReason[t.ExitReason]++

		if t.PnL > 0 {
			s.Wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			s.Losses++
			grossLoss += -t.PnL
		}

		if i == 0 || t.PnL > s.BestTrade {
			s.BestTrade = t.PnL
		}
		if i == 0 || t.PnL < s.WorstTrade {
			s.WorstTrade = t.PnL
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	}
	if s.Wins > 0 {
		s.AverageWin = grossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AverageLoss = grossLoss / float64(s.Losses)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	return s, nil
}
