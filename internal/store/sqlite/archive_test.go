package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeloop/internal/model"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(Config{DBPath: filepath.Join(t.TempDir(), "candles.db")})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func seriesFrom(t0 time.Time, closes ...float64) model.Series {
	s := model.Series{Instrument: "BTCUSDT", Interval: "5m"}
	for i, c := range closes {
		s.Candles = append(s.Candles, model.Candle{
			TS: t0.Add(time.Duration(i) * 5 * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 2.5,
		})
	}
	return s
}

func TestArchive_SaveLoad(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, a.SaveSeries(ctx, seriesFrom(t0, 100, 101, 102)))

	got, err := a.LoadSeries(ctx, "BTCUSDT", "5m")
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []float64{100, 101, 102}, got.Closes())
	assert.True(t, got.Candles[0].TS.Equal(t0))
	assert.Equal(t, 2.5, got.Candles[2].Volume)
	assert.NoError(t, got.Validate())
}

func TestArchive_OverlappingFetchesUpsert(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, a.SaveSeries(ctx, seriesFrom(t0, 100, 101, 102)))
	// Next poll: window slid by one, last candle revised.
	require.NoError(t, a.SaveSeries(ctx, seriesFrom(t0.Add(5*time.Minute), 101, 105, 103)))

	n, err := a.Count(ctx, "BTCUSDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := a.LoadSeries(ctx, "BTCUSDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 105, 103}, got.Closes())
}

func TestArchive_SeparatesKeys(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, a.SaveSeries(ctx, seriesFrom(t0, 1, 2)))
	eth := seriesFrom(t0, 3)
	eth.Instrument = "ETHUSDT"
	require.NoError(t, a.SaveSeries(ctx, eth))

	got, err := a.LoadSeries(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Zero(t, got.Len())

	got, err = a.LoadSeries(ctx, "ETHUSDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, got.Closes())
}

func TestArchive_EmptySeries(t *testing.T) {
	a := openTemp(t)
	assert.NoError(t, a.SaveSeries(context.Background(), model.Series{Instrument: "BTCUSDT", Interval: "5m"}))
}
