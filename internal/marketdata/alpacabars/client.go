// Package alpacabars fetches crypto bars through the Alpaca market data API.
package alpacabars

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradeloop/internal/model"
)

// BarsGetter is the part of *marketdata.Client this package uses.
type BarsGetter interface {
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// Config holds Alpaca credentials.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // optional data API override
}

// Client implements model.MarketDataClient on top of Alpaca crypto bars.
type Client struct {
	bars BarsGetter
	now  func() time.Time
}

var _ model.MarketDataClient = (*Client)(nil)

// New creates a client backed by the official SDK.
func New(cfg Config) *Client {
	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return NewWithBars(md)
}

// NewWithBars wraps any BarsGetter.
func NewWithBars(b BarsGetter) *Client {
	return &Client{bars: b, now: time.Now}
}

// TimeFrame maps an interval onto an Alpaca time frame.
func TimeFrame(iv model.Interval) (marketdata.TimeFrame, error) {
	d := iv.Duration()
	switch {
	case d <= 0:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported interval %q", iv)
	case d%(24*time.Hour) == 0:
		return marketdata.NewTimeFrame(int(d/(24*time.Hour)), marketdata.Day), nil
	case d%time.Hour == 0:
		return marketdata.NewTimeFrame(int(d/time.Hour), marketdata.Hour), nil
	default:
		return marketdata.NewTimeFrame(int(d/time.Minute), marketdata.Min), nil
	}
}

// FetchCandles requests a window wide enough for limit bars and keeps the
// newest limit of them.
func (c *Client) FetchCandles(ctx context.Context, instrument string, interval model.Interval, limit int) (model.Series, error) {
	if limit <= 0 {
		return model.Series{}, fmt.Errorf("alpaca: limit %d: %w", limit, model.ErrDataFetch)
	}
	tf, err := TimeFrame(interval)
	if err != nil {
		return model.Series{}, fmt.Errorf("alpaca: %v: %w", err, model.ErrDataFetch)
	}
	if err := ctx.Err(); err != nil {
		return model.Series{}, err
	}

	end := c.now().UTC()
	start := end.Add(-time.Duration(limit+2) * interval.Duration())
	symbol := model.PairSymbol(instrument)

	bars, err := c.bars.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return model.Series{}, fmt.Errorf("alpaca: bars %s: %v: %w", symbol, err, model.ErrDataFetch)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	s := model.Series{Instrument: instrument, Interval: interval, Candles: make([]model.Candle, 0, len(bars))}
	for _, b := range bars {
		s.Candles = append(s.Candles, model.Candle{
			TS:     b.Timestamp.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	if err := s.Validate(); err != nil {
		return model.Series{}, fmt.Errorf("alpaca: bars %s: %v: %w", symbol, err, model.ErrDataFetch)
	}
	log.Printf("[alpaca] fetched %d %s/%s bars", s.Len(), symbol, interval)
	return s, nil
}
