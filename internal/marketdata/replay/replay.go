// Package replay serves archived candles to the trading loop as if they were
// arriving live, for backtesting.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"tradeloop/internal/model"
)

// ErrExhausted is returned once every archived candle has been served.
var ErrExhausted = errors.New("replay: series exhausted")

// Client implements model.MarketDataClient over a fixed series. Each fetch
// reveals one more candle and returns the newest limit candles seen so far,
// so the window grows until it reaches limit and then slides.
type Client struct {
	mu     sync.Mutex
	series model.Series
	cursor int // number of candles revealed
}

var _ model.MarketDataClient = (*Client)(nil)

// New creates a replay client. The first fetch reveals start+1 candles
// (start is clamped to the series length).
func New(s model.Series, start int) *Client {
	if start < 0 {
		start = 0
	}
	if start > s.Len() {
		start = s.Len()
	}
	return &Client{series: s, cursor: start}
}

// FromArchive loads a series from the archive and wraps it.
func FromArchive(ctx context.Context, a model.CandleArchive, instrument string, interval model.Interval, start int) (*Client, error) {
	s, err := a.LoadSeries(ctx, instrument, interval)
	if err != nil {
		return nil, fmt.Errorf("replay: load %s/%s: %w", instrument, interval, err)
	}
	if s.Len() == 0 {
		return nil, fmt.Errorf("replay: no archived candles for %s/%s", instrument, interval)
	}
	log.Printf("[replay] loaded %d %s/%s candles", s.Len(), instrument, interval)
	return New(s, start), nil
}

// FetchCandles advances the replay by one candle.
func (c *Client) FetchCandles(ctx context.Context, instrument string, interval model.Interval, limit int) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return model.Series{}, err
	}
	if instrument != c.series.Instrument || interval != c.series.Interval {
		return model.Series{}, fmt.Errorf("replay: have %s/%s, asked for %s/%s: %w",
			c.series.Instrument, c.series.Interval, instrument, interval, model.ErrDataFetch)
	}
	if limit <= 0 {
		return model.Series{}, fmt.Errorf("replay: limit %d: %w", limit, model.ErrDataFetch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cursor >= c.series.Len() {
		return model.Series{}, ErrExhausted
	}
	c.cursor++

	from := c.cursor - limit
	if from < 0 {
		from = 0
	}
	out := model.Series{
		Instrument: c.series.Instrument,
		Interval:   c.series.Interval,
		Candles:    append([]model.Candle(nil), c.series.Candles[from:c.cursor]...),
	}
	return out, nil
}

// Position returns how many candles have been revealed.
func (c *Client) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Remaining returns how many fetches are left before ErrExhausted.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.series.Len() - c.cursor
}

// Quote returns the close of the newest revealed candle, for paper fills.
func (c *Client) Quote(instrument string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if instrument != c.series.Instrument || c.cursor == 0 {
		return 0, false
	}
	return c.series.Candles[c.cursor-1].Close, true
}
