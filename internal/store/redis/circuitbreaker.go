package redis

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned without calling fn while the breaker is open
// or while its single half-open probe is still in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker keeps the cycle publisher from hammering an unavailable Redis.
//
// threshold consecutive failures open it for cooldown. The first call after
// the cooldown is a probe: success closes the breaker, failure reopens it
// for another cooldown. Failures caused by the caller's own context ending
// are not held against Redis.
type Breaker struct {
	mu        sync.Mutex
	state     State
	streak    int
	threshold int
	cooldown  time.Duration
	openUntil time.Time
	probing   bool
	now       func() time.Time

	// OnStateChange runs on every transition with the breaker locked.
	OnStateChange func(from, to State)
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: max(threshold, 1), cooldown: cooldown, now: time.Now}
}

// Do runs fn unless the breaker rejects the call.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(ctx, err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
	}
	b.probing = b.state == StateHalfOpen
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	switch {
	case err == nil:
		b.streak = 0
		b.setState(StateClosed)
	case ctx.Err() != nil:
		// the caller gave up; a pending probe may be retried
	default:
		b.streak++
		if b.state == StateHalfOpen || b.streak >= b.threshold {
			b.openUntil = b.now().Add(b.cooldown)
			b.setState(StateOpen)
		}
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Streak returns the consecutive failure count.
func (b *Breaker) Streak() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streak
}

func (b *Breaker) setState(to State) {
	if from := b.state; from != to {
		b.state = to
		if b.OnStateChange != nil {
			b.OnStateChange(from, to)
		}
	}
}
