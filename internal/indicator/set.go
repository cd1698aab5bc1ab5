package indicator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Name identifies an indicator line in a Set.
type Name string

const (
	SMA        Name = "SMA"
	EMA        Name = "EMA"
	RSI        Name = "RSI"
	MACD       Name = "MACD"
	MACDSignal Name = "MACD_signal"
)

// lineOrder is the canonical column order of a Set.
var lineOrder = []Name{SMA, EMA, RSI, MACD, MACDSignal}

// Requestable lists the indicators an operator may enable. Requesting MACD
// produces both the MACD and MACD_signal lines.
var Requestable = []Name{SMA, EMA, RSI, MACD}

// ParseName parses an operator-facing indicator name ("sma", "MACD", ...).
func ParseName(s string) (Name, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for _, n := range Requestable {
		if string(n) == want {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown indicator %q", s)
}

// Point is one aligned indicator sample. OK is false while the indicator is
// still warming up at that position.
type Point struct {
	V  float64
	OK bool
}

// MarshalJSON encodes unavailable points as null.
func (p Point) MarshalJSON() ([]byte, error) {
	if !p.OK {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(p.V, 'f', -1, 64)), nil
}

// UnmarshalJSON decodes null as an unavailable point.
func (p *Point) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = Point{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Point{V: v, OK: true}
	return nil
}

// Line is an indicator sequence aligned position-for-position with a Series.
type Line []Point

// At returns the value at position i and whether it is available.
// Out-of-range positions are unavailable.
func (l Line) At(i int) (float64, bool) {
	if i < 0 || i >= len(l) {
		return 0, false
	}
	return l[i].V, l[i].OK
}

// Last returns the value at the newest position.
func (l Line) Last() (float64, bool) { return l.At(len(l) - 1) }

// Prior returns the value at the second-newest position.
func (l Line) Prior() (float64, bool) { return l.At(len(l) - 2) }

// Set maps indicator names to lines that all share the length of the series
// they were derived from.
type Set struct {
	n       int
	lines   map[Name]Line
	columns map[Name]string
}

// NewSet creates an empty Set for a series of length n.
func NewSet(n int) *Set {
	return &Set{
		n:       n,
		lines:   make(map[Name]Line, len(lineOrder)),
		columns: make(map[Name]string, len(lineOrder)),
	}
}

// Put stores a line under name. The line must have the Set's length.
func (s *Set) Put(name Name, column string, l Line) error {
	if len(l) != s.n {
		return fmt.Errorf("indicator %s: line length %d != series length %d", name, len(l), s.n)
	}
	s.lines[name] = l
	if column == "" {
		column = string(name)
	}
	s.columns[name] = column
	return nil
}

// Line returns the line for name; ok is false if it was not computed.
func (s *Set) Line(name Name) (Line, bool) {
	if s == nil {
		return nil, false
	}
	l, ok := s.lines[name]
	return l, ok
}

// Len returns the series length every line is aligned to.
func (s *Set) Len() int { return s.n }

// Names returns the computed line names in canonical order.
func (s *Set) Names() []Name {
	if s == nil {
		return nil
	}
	out := make([]Name, 0, len(s.lines))
	for _, n := range lineOrder {
		if _, ok := s.lines[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Column returns the display column for name, e.g. "SMA_20".
func (s *Set) Column(name Name) string {
	if c, ok := s.columns[name]; ok {
		return c
	}
	return string(name)
}
