package alpacabars

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeloop/internal/model"
)

type fakeBars struct {
	calls  int
	symbol string
	req    marketdata.GetCryptoBarsRequest
	bars   []marketdata.CryptoBar
	err    error
}

func (f *fakeBars) GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error) {
	f.calls++
	f.symbol, f.req = symbol, req
	return f.bars, f.err
}

func bars(t0 time.Time, n int) []marketdata.CryptoBar {
	out := make([]marketdata.CryptoBar, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = marketdata.CryptoBar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 3}
	}
	return out
}

func TestFetchCandles_TrimsToLimit(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeBars{bars: bars(now.Add(-30*time.Hour), 30)}
	c := NewWithBars(f)
	c.now = func() time.Time { return now }

	s, err := c.FetchCandles(context.Background(), "ETHUSDT", "1h", 20)
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "ETH/USDT", f.symbol)
	assert.Equal(t, marketdata.NewTimeFrame(1, marketdata.Hour), f.req.TimeFrame)
	assert.Equal(t, now.Add(-22*time.Hour), f.req.Start)
	assert.Equal(t, now, f.req.End)

	require.Equal(t, 20, s.Len())
	assert.Equal(t, 110.0, s.Candles[0].Close)
	assert.Equal(t, 129.0, s.Candles[19].Close)
	assert.Equal(t, "ETHUSDT", s.Instrument)
}

func TestFetchCandles_Error(t *testing.T) {
	c := NewWithBars(&fakeBars{err: errors.New("forbidden")})
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "5m", 10)
	assert.ErrorIs(t, err, model.ErrDataFetch)
}

func TestFetchCandles_CancelledBeforeIO(t *testing.T) {
	f := &fakeBars{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWithBars(f).FetchCandles(ctx, "BTCUSDT", "5m", 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.calls)
}

func TestTimeFrame(t *testing.T) {
	cases := map[model.Interval]marketdata.TimeFrame{
		"1m":  marketdata.NewTimeFrame(1, marketdata.Min),
		"15m": marketdata.NewTimeFrame(15, marketdata.Min),
		"4h":  marketdata.NewTimeFrame(4, marketdata.Hour),
		"1d":  marketdata.NewTimeFrame(1, marketdata.Day),
	}
	for iv, want := range cases {
		got, err := TimeFrame(iv)
		require.NoError(t, err, iv)
		assert.Equal(t, want, got, iv)
	}
	_, err := TimeFrame("9x")
	assert.Error(t, err)
}
