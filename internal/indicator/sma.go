package indicator

import "gonum.org/v1/gonum/stat"

// SMAIndicator is the arithmetic mean of the most recent period closes.
type SMAIndicator struct {
	window []float64
	pos    int
	filled bool
}

func NewSMA(period int) *SMAIndicator {
	return &SMAIndicator{window: make([]float64, period)}
}

func (s *SMAIndicator) Next(price float64) Point {
	s.window[s.pos] = price
	if s.pos++; s.pos == len(s.window) {
		s.pos, s.filled = 0, true
	}
	if !s.filled {
		return Point{}
	}
	return Point{V: stat.Mean(s.window, nil), OK: true}
}
