package model

import (
	"context"
)

// ── Remote service ports ──
// These interfaces decouple the trading loop from concrete venues
// (Binance, Alpaca, paper, replay). Instances are constructed by the caller
// and injected; there is no process-wide client.

// MarketDataClient fetches the most recent candles for an instrument.
type MarketDataClient interface {
	// FetchCandles returns up to limit candles in ascending time order, or an
	// error. It never returns a partially populated series alongside an error.
	FetchCandles(ctx context.Context, instrument string, interval Interval, limit int) (Series, error)
}

// ExecutionGateway submits market orders.
type ExecutionGateway interface {
	// SubmitOrder places one market order. No retries are attempted.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error)
}

// CandleArchive stores fetched series for later replay.
type CandleArchive interface {
	// SaveSeries upserts every candle of the series.
	SaveSeries(ctx context.Context, s Series) error

	// LoadSeries returns archived candles in ascending order.
	LoadSeries(ctx context.Context, instrument string, interval Interval) (Series, error)

	// Close releases underlying resources.
	Close() error
}
