package broker

import (
	"context"
	"fmt"
	"sync"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// KiteSource implements PriceSource backed by Zerodha Kite Connect.
// It serves live data only: any fetch failure surfaces as a PriceError
// so callers can tell "no data" apart from a real price.
type KiteSource struct {
	client *kiteconnect.Client
	mu     sync.RWMutex
}

// KiteConfig holds configuration for the Kite price source.
type KiteConfig struct {
	APIKey      string
	AccessToken string
}

// NewKiteSource creates a new Kite-backed price source.
func NewKiteSource(cfg KiteConfig) *KiteSource {
	client := kiteconnect.New(cfg.APIKey)
	if cfg.AccessToken != "" {
		client.SetAccessToken(cfg.AccessToken)
	}
	return &KiteSource{client: client}
}

// SetAccessToken updates the session token after login.
func (k *KiteSource) SetAccessToken(token string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.client.SetAccessToken(token)
}

// instrumentKey builds the "EXCHANGE:SYMBOL" key Kite expects.
func instrumentKey(symbol string, exchange models.Exchange) string {
	return fmt.Sprintf("%s:%s", exchange, symbol)
}

// LastPrice fetches the last traded price for a symbol.
func (k *KiteSource) LastPrice(ctx context.Context, symbol string, exchange models.Exchange) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewPriceError(symbol, string(exchange), err)
	}

	key := instrumentKey(symbol, exchange)
	ltps, err := k.client.GetLTP(key)
	if err != nil {
		return 0, apperrors.NewPriceError(symbol, string(exchange), err)
	}

	ltp, ok := ltps[key]
	if !ok || ltp.LastPrice <= 0 {
		return 0, apperrors.NewPriceError(symbol, string(exchange), nil)
	}
	return ltp.LastPrice, nil
}

// Quote fetches a full quote for a symbol.
func (k *KiteSource) Quote(ctx context.Context, symbol string, exchange models.Exchange) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewPriceError(symbol, string(exchange), err)
	}

	key := instrumentKey(symbol, exchange)
	quotes, err := k.client.GetQuote(key)
	if err != nil {
		return nil, apperrors.NewPriceError(symbol, string(exchange), err)
	}

	q, ok := quotes[key]
	if !ok {
		return nil, apperrors.NewPriceError(symbol, string(exchange), nil)
	}

	quote := &models.Quote{
		Symbol:    symbol,
		Exchange:  exchange,
		LTP:       q.LastPrice,
		Open:      q.OHLC.Open,
		High:      q.OHLC.High,
		Low:       q.OHLC.Low,
		Close:     q.OHLC.Close,
		Volume:    int64(q.Volume),
		Change:    q.NetChange,
		Timestamp: q.LastTradeTime.Time,
	}
	if q.OHLC.Close != 0 {
		quote.ChangePercent = q.NetChange / q.OHLC.Close * 100
	}
	return quote, nil
}

var _ QuoteSource = (*KiteSource)(nil)
