// Package logger sets up the process-wide JSON slog logger. Records logged
// with a context carrying a cycle ID are stamped with it, so every line of
// one monitoring cycle can be correlated.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey struct{}

// Init installs a JSON logger on stdout as the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	h := cycleHandler{slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})}
	l := slog.New(h).With(slog.String("service", service))
	slog.SetDefault(l)
	return l
}

// ParseLevel maps LOG_LEVEL (debug, info, warn, error) to a level; anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// CycleID returns the cycle ID carried by ctx, or "".
func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// GenerateCycleID formats "{instrument}-{seq}-{unixNano}".
func GenerateCycleID(instrument string, seq uint64, ts time.Time) string {
	return fmt.Sprintf("%s-%d-%d", instrument, seq, ts.UnixNano())
}

// cycleHandler adds cycle_id to records whose context carries one.
type cycleHandler struct{ slog.Handler }

func (h cycleHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id := CycleID(ctx); id != "" {
			r.AddAttrs(slog.String("cycle_id", id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h cycleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return cycleHandler{h.Handler.WithAttrs(attrs)}
}

func (h cycleHandler) WithGroup(name string) slog.Handler {
	return cycleHandler{h.Handler.WithGroup(name)}
}
