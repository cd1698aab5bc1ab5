package report

import (
	"context"
	"log/slog"
	"sync"

	"tradeloop/internal/ringbuf"
)

// Async hands cycles to a background goroutine through an SPSC ring so a
// slow sink never delays the loop. The loop is the only producer.
// When the ring is full the cycle is dropped and counted.
type Async struct {
	next Reporter
	ring *ringbuf.Ring[Cycle]
	wake chan struct{}

	onDrop func()
	wg     sync.WaitGroup
}

// NewAsync wraps next with a ring of the given capacity. onDrop, if set, is
// called for every dropped cycle.
func NewAsync(next Reporter, capacity int, onDrop func()) *Async {
	return &Async{
		next:   next,
		ring:   ringbuf.New[Cycle](capacity),
		wake:   make(chan struct{}, 1),
		onDrop: onDrop,
	}
}

// Start launches the consumer. It drains what is queued after ctx is done.
func (a *Async) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				a.drain(context.WithoutCancel(ctx))
				return
			case <-a.wake:
				a.drain(ctx)
			}
		}
	}()
}

// Wait blocks until the consumer exits.
func (a *Async) Wait() { a.wg.Wait() }

func (a *Async) Report(_ context.Context, c Cycle) error {
	if !a.ring.Push(c) {
		slog.Warn("report queue full, dropping cycle", "cycle_id", c.ID, "dropped", a.ring.Dropped())
		if a.onDrop != nil {
			a.onDrop()
		}
		return nil
	}
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dropped returns how many cycles were dropped on a full queue.
func (a *Async) Dropped() uint64 { return a.ring.Dropped() }

func (a *Async) drain(ctx context.Context) {
	a.ring.Drain(func(c Cycle) {
		if err := a.next.Report(ctx, c); err != nil {
			slog.Warn("reporter failed", "cycle_id", c.ID, "error", err)
		}
	})
}
