package report

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// LogReporter writes each cycle as structured log lines.
type LogReporter struct {
	log *slog.Logger
}

// NewLogReporter creates a reporter writing to l (slog.Default if nil).
func NewLogReporter(l *slog.Logger) *LogReporter {
	if l == nil {
		l = slog.Default()
	}
	return &LogReporter{log: l}
}

func (r *LogReporter) Report(ctx context.Context, c Cycle) error {
	attrs := []any{
		slog.String("instrument", c.Instrument),
		slog.String("interval", c.Interval.String()),
		slog.String("state", c.State),
		slog.Int("candles", c.Candles),
		slog.Int("signals", len(c.Signals)),
		slog.Duration("took", c.Duration()),
	}
	if n := len(c.Tail); n > 0 {
		last := c.Tail[n-1]
		attrs = append(attrs, slog.Float64("close", last.Close), slog.String("latest", formatRow(c.Columns, last)))
	}
	r.log.InfoContext(ctx, "cycle complete", attrs...)

	for _, is := range c.Issues {
		r.log.WarnContext(ctx, "cycle issue",
			slog.String("kind", string(is.Kind)),
			slog.String("instrument", is.Instrument),
			slog.Time("at", is.At),
			slog.String("cause", is.Cause))
	}
	for _, s := range c.Signals {
		r.log.InfoContext(ctx, s.String(), slog.String("rule", string(s.Rule)))
	}
	for _, o := range c.Orders {
		if o.Confirmation != nil {
			r.log.InfoContext(ctx, "order submitted",
				slog.String("order_id", o.Confirmation.OrderID),
				slog.String("side", string(o.Confirmation.Side)),
				slog.String("qty", o.Confirmation.Qty.String()),
				slog.String("status", o.Confirmation.Status))
		}
	}
	return nil
}

// formatRow renders "SMA_20=101.25 RSI_14=n/a" in column order.
func formatRow(columns []string, row Row) string {
	var b strings.Builder
	for _, col := range columns {
		p, ok := row.Indicators[col]
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(col)
		b.WriteByte('=')
		if !ok || !p.OK {
			b.WriteString("n/a")
			continue
		}
		b.WriteString(strconv.FormatFloat(p.V, 'f', 4, 64))
	}
	return b.String()
}
