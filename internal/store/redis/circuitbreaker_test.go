package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(threshold, cooldown)
	b.now = clk.now
	return b, clk
}

var errDown = errors.New("connection refused")

func failing(context.Context) error    { return errDown }
func succeeding(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(3, time.Second)
	assert.Equal(t, StateClosed, b.State())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(ctx, failing), errDown)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "fn must not run while open")
}

func TestBreaker_ProbeOutcome(t *testing.T) {
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  State
	}{
		{"success closes", succeeding, StateClosed},
		{"failure reopens", failing, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b, clk := newTestBreaker(2, time.Second)
			b.Do(ctx, failing)
			b.Do(ctx, failing)
			require.Equal(t, StateOpen, b.State())

			clk.advance(time.Second)
			b.Do(ctx, tt.probe)
			assert.Equal(t, tt.want, b.State())

			if tt.want == StateOpen {
				// a failed probe restarts the cooldown
				clk.advance(500 * time.Millisecond)
				assert.ErrorIs(t, b.Do(ctx, succeeding), ErrCircuitOpen)
			} else {
				assert.Zero(t, b.Streak())
			}
		})
	}
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	ctx := context.Background()
	b, clk := newTestBreaker(1, time.Second)
	b.Do(ctx, failing)
	clk.advance(2 * time.Second)

	var inner error
	err := b.Do(ctx, func(context.Context) error {
		assert.Equal(t, StateHalfOpen, b.State())
		inner = b.Do(ctx, succeeding)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrCircuitOpen)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(3, time.Second)

	b.Do(ctx, failing)
	b.Do(ctx, failing)
	b.Do(ctx, succeeding)
	b.Do(ctx, failing)
	b.Do(ctx, failing)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 2, b.Streak())
}

func TestBreaker_CallerCancellationNotCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b, _ := newTestBreaker(1, time.Second)

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Streak())
}

func TestBreaker_OnStateChange(t *testing.T) {
	ctx := context.Background()
	var seen []State
	b, clk := newTestBreaker(1, time.Second)
	b.OnStateChange = func(_, to State) { seen = append(seen, to) }

	b.Do(ctx, failing)
	clk.advance(2 * time.Second)
	b.Do(ctx, succeeding)

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, seen)
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		assert.Equal(t, want, s.String())
	}
}
