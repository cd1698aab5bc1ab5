// Package report defines the per-cycle operator report and the reporters
// that deliver it (logs, history, Redis, WebSocket, alerts).
package report

import (
	"context"
	"errors"
	"time"

	"tradeloop/internal/indicator"
	"tradeloop/internal/model"
	"tradeloop/internal/strategy"
)

// TailRows is how many trailing rows a cycle report carries.
const TailRows = 5

// IssueKind classifies a recovered cycle failure.
type IssueKind string

const (
	IssueDataFetch           IssueKind = "data_fetch"
	IssueInsufficientHistory IssueKind = "insufficient_history"
	IssueOrderSubmission     IssueKind = "order_submission"
)

// KindOf maps an error to its IssueKind using the model sentinels.
func KindOf(err error) IssueKind {
	switch {
	case errors.Is(err, model.ErrInsufficientHistory):
		return IssueInsufficientHistory
	case errors.Is(err, model.ErrOrderSubmission):
		return IssueOrderSubmission
	}
	return IssueDataFetch
}

// Issue is one recovered failure, reported once.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	Instrument string    `json:"instrument"`
	At         time.Time `json:"at"`
	Cause      string    `json:"cause"`
	Err        error     `json:"-"`
}

// NewIssue builds an Issue from err.
func NewIssue(instrument string, at time.Time, err error) Issue {
	return Issue{Kind: KindOf(err), Instrument: instrument, At: at, Cause: err.Error(), Err: err}
}

// Row is one candle plus every indicator value aligned to it.
type Row struct {
	TS         time.Time                  `json:"ts"`
	Open       float64                    `json:"open"`
	High       float64                    `json:"high"`
	Low        float64                    `json:"low"`
	Close      float64                    `json:"close"`
	Volume     float64                    `json:"volume"`
	Indicators map[string]indicator.Point `json:"indicators,omitempty"`
}

// OrderResult is the gateway outcome for one signal.
type OrderResult struct {
	Signal       strategy.Signal          `json:"signal"`
	Confirmation *model.OrderConfirmation `json:"confirmation,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// Cycle is everything observable about one loop iteration.
type Cycle struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Instrument string            `json:"instrument"`
	Interval   model.Interval    `json:"interval"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	State      string            `json:"state"`
	AutoTrade  bool              `json:"auto_trade"`
	Candles    int               `json:"candles"`
	Columns    []string          `json:"columns,omitempty"`
	Tail       []Row             `json:"tail,omitempty"`
	Signals    []strategy.Signal `json:"signals,omitempty"`
	Orders     []OrderResult     `json:"orders,omitempty"`
	Issues     []Issue           `json:"issues,omitempty"`
}

// Duration returns how long the cycle took.
func (c Cycle) Duration() time.Duration { return c.FinishedAt.Sub(c.StartedAt) }

// OK reports whether the cycle finished without issues.
func (c Cycle) OK() bool { return len(c.Issues) == 0 }

// BuildTail returns the last n rows of s with the values of set aligned to
// them. set may be nil (rows carry OHLCV only).
func BuildTail(s model.Series, set *indicator.Set, n int) []Row {
	start := s.Len() - n
	if start < 0 {
		start = 0
	}
	names := set.Names()

	rows := make([]Row, 0, s.Len()-start)
	for i := start; i < s.Len(); i++ {
		c := s.Candles[i]
		r := Row{TS: c.TS, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
		if len(names) > 0 {
			r.Indicators = make(map[string]indicator.Point, len(names))
			for _, name := range names {
				l, _ := set.Line(name)
				v, ok := l.At(i)
				r.Indicators[set.Column(name)] = indicator.Point{V: v, OK: ok}
			}
		}
		rows = append(rows, r)
	}
	return rows
}

// Columns returns the display columns of set in canonical order.
func Columns(set *indicator.Set) []string {
	names := set.Names()
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = set.Column(n)
	}
	return out
}

// Reporter delivers a finished cycle somewhere. Reporter errors never
// affect the loop.
type Reporter interface {
	Report(ctx context.Context, c Cycle) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, c Cycle) error

func (f ReporterFunc) Report(ctx context.Context, c Cycle) error { return f(ctx, c) }

// Multi fans a cycle out to every reporter and joins their errors.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, c Cycle) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
