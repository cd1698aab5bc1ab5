package model

import (
	"fmt"
	"math"
	"time"
)

// Candle is one OHLCV sample for a fixed interval.
type Candle struct {
	TS     time.Time `json:"ts"` // interval open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered, time-indexed sequence of candles for one instrument.
// It is built fresh on every poll and never mutated afterwards.
type Series struct {
	Instrument string   `json:"instrument"`
	Interval   Interval `json:"interval"`
	Candles    []Candle `json:"candles"`
}

// Len returns the number of candles in the series.
func (s Series) Len() int { return len(s.Candles) }

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Last returns the newest candle. ok is false for an empty series.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Validate checks the series invariants: strictly ascending unique timestamps,
// finite prices and a positive close.
func (s Series) Validate() error {
	for i, c := range s.Candles {
		if !finite(c.Open) || !finite(c.High) || !finite(c.Low) || !finite(c.Close) || !finite(c.Volume) {
			return fmt.Errorf("candle %d (%s): non-finite value", i, c.TS.Format(time.RFC3339))
		}
		if c.Close <= 0 {
			return fmt.Errorf("candle %d (%s): close %.8f must be > 0", i, c.TS.Format(time.RFC3339), c.Close)
		}
		if i > 0 && !c.TS.After(s.Candles[i-1].TS) {
			return fmt.Errorf("candle %d (%s): timestamp not after %s", i,
				c.TS.Format(time.RFC3339), s.Candles[i-1].TS.Format(time.RFC3339))
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
