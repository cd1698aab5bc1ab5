package report

import (
	"context"
	"sync"
)

// DefaultHistorySize is how many cycles History keeps when size <= 0.
const DefaultHistorySize = 50

// History keeps the most recent cycles in memory for the status API.
type History struct {
	mu    sync.RWMutex
	buf   []Cycle
	next  int
	full  bool
	total uint64
}

// NewHistory creates a History holding at most size cycles.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Cycle, size)}
}

func (h *History) Report(_ context.Context, c Cycle) error {
	h.mu.Lock()
	h.buf[h.next] = c
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.total++
	h.mu.Unlock()
	return nil
}

// Latest returns the newest cycle.
func (h *History) Latest() (Cycle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full && h.next == 0 {
		return Cycle{}, false
	}
	i := (h.next - 1 + len(h.buf)) % len(h.buf)
	return h.buf[i], true
}

// All returns the retained cycles, oldest first.
func (h *History) All() []Cycle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		return append([]Cycle(nil), h.buf[:h.next]...)
	}
	out := make([]Cycle, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// Total returns how many cycles were ever reported.
func (h *History) Total() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}
