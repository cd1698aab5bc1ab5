// Package notification delivers operator alerts (Telegram, webhooks, logs)
// for signals, orders and recovered cycle failures.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tradeloop/internal/report"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level      AlertLevel `json:"level"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Instrument string     `json:"instrument,omitempty"`
	CycleID    string     `json:"cycle_id,omitempty"`
	At         time.Time  `json:"at"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s (cycle=%s)", alert.Level, alert.Title, alert.Message, alert.CycleID)
	return nil
}

// AlertsFor turns a cycle into alerts: one per signal, per order outcome
// and per issue. A quiet cycle yields none.
func AlertsFor(c report.Cycle) []Alert {
	var out []Alert
	add := func(level AlertLevel, title, msg string) {
		out = append(out, Alert{
			Level:      level,
			Title:      title,
			Message:    msg,
			Instrument: c.Instrument,
			CycleID:    c.ID,
			At:         c.FinishedAt,
		})
	}

	for _, s := range c.Signals {
		add(AlertInfo, fmt.Sprintf("%s %s", c.Instrument, s.String()),
			fmt.Sprintf("rule=%s interval=%s", s.Rule, c.Interval))
	}
	for _, o := range c.Orders {
		if o.Confirmation != nil {
			add(AlertInfo, fmt.Sprintf("%s order %s", c.Instrument, o.Confirmation.Status),
				fmt.Sprintf("%s %s qty=%s id=%s",
					o.Confirmation.Side, o.Confirmation.Instrument, o.Confirmation.Qty, o.Confirmation.OrderID))
			continue
		}
		add(AlertCritical, fmt.Sprintf("%s order failed", c.Instrument),
			fmt.Sprintf("%s: %s", o.Signal.String(), o.Error))
	}
	for _, is := range c.Issues {
		if is.Kind == report.IssueOrderSubmission {
			// already alerted through the order outcome
			continue
		}
		add(AlertWarning, fmt.Sprintf("%s %s", is.Instrument, is.Kind), is.Cause)
	}
	return out
}

// Reporter sends the alerts of every cycle through a Notifier.
type Reporter struct {
	n Notifier
}

// NewReporter wraps n as a cycle reporter.
func NewReporter(n Notifier) *Reporter {
	return &Reporter{n: n}
}

func (r *Reporter) Report(ctx context.Context, c report.Cycle) error {
	var errs []error
	for _, a := range AlertsFor(c) {
		if err := r.n.Send(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
