package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultInstruments is the allow-list offered to operators when none is configured.
var DefaultInstruments = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT"}

// Interval is a candle granularity, e.g. "5m".
type Interval string

const DefaultInterval Interval = "5m"

var intervalDurations = map[Interval]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseInterval validates s against the supported granularities.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	return iv, nil
}

// Duration returns the wall-clock length of one candle. Zero for unknown intervals.
func (iv Interval) Duration() time.Duration {
	return intervalDurations[iv]
}

// Valid reports whether iv is a supported interval.
func (iv Interval) Valid() bool {
	_, ok := intervalDurations[iv]
	return ok
}

func (iv Interval) String() string { return string(iv) }

var quoteAssets = []string{"USDT", "USDC", "USD", "BTC"}

// PairSymbol converts an exchange-style instrument ("BTCUSDT") into the
// slash-separated pair used by Alpaca ("BTC/USDT"). Unrecognized symbols are
// returned unchanged.
func PairSymbol(instrument string) string {
	if strings.Contains(instrument, "/") {
		return instrument
	}
	for _, q := range quoteAssets {
		if base, ok := strings.CutSuffix(instrument, q); ok && base != "" {
			return base + "/" + q
		}
	}
	return instrument
}
