// Package redis publishes cycle reports to Redis so dashboards and other
// processes can follow the loop: the newest cycle under a TTL'd key, a
// capped stream of recent cycles, and a pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradeloop/internal/report"
)

const (
	defaultLatestTTL    = 30 * time.Minute
	defaultStreamMaxLen = 1000
	defaultMaxPending   = 100
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	LatestTTL    time.Duration
	StreamMaxLen int64
	MaxPending   int // cycles kept while the breaker is open
}

func (c Config) withDefaults() Config {
	if c.LatestTTL <= 0 {
		c.LatestTTL = defaultLatestTTL
	}
	if c.StreamMaxLen <= 0 {
		c.StreamMaxLen = defaultStreamMaxLen
	}
	if c.MaxPending <= 0 {
		c.MaxPending = defaultMaxPending
	}
	return c
}

// LatestKey is the key holding the newest cycle for an instrument.
func LatestKey(instrument string) string { return "cycle:latest:" + instrument }

// StreamKey is the capped stream of recent cycles for an instrument.
func StreamKey(instrument string) string { return "cycle:stream:" + instrument }

// Channel is the pub/sub channel cycles are announced on.
func Channel(instrument string) string { return "pub:cycle:" + instrument }

// Publisher is a report.Reporter writing cycles to Redis.
type Publisher struct {
	client goredis.UniversalClient
	cfg    Config
	cb     *Breaker

	mu      sync.Mutex
	pending []report.Cycle

	// OnSkip is called when a cycle is held back because the breaker is open.
	OnSkip func()
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewPublisherWithClient(client, cfg), nil
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(client goredis.UniversalClient, cfg Config) *Publisher {
	return &Publisher{client: client, cfg: cfg.withDefaults()}
}

// WithCircuitBreaker routes publishes through cb. While it is open, cycles
// are held (oldest dropped beyond MaxPending) and written to the stream on
// the next successful publish.
func (p *Publisher) WithCircuitBreaker(cb *Breaker) *Publisher {
	p.cb = cb
	return p
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() goredis.UniversalClient { return p.client }

func (p *Publisher) Report(ctx context.Context, c report.Cycle) error {
	batch := append(p.takePending(), c)

	if p.cb == nil {
		return p.publish(ctx, batch)
	}

	err := p.cb.Do(ctx, func(ctx context.Context) error { return p.publish(ctx, batch) })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCircuitOpen):
		p.hold(batch)
		if p.OnSkip != nil {
			p.OnSkip()
		}
		return nil
	default:
		p.hold(batch)
		return err
	}
}

// Pending returns the number of held cycles.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// publish writes every cycle to the stream and channel, and the last one to
// the latest key, in a single pipeline.
func (p *Publisher) publish(ctx context.Context, cycles []report.Cycle) error {
	pipe := p.client.Pipeline()
	var last string
	for _, c := range cycles {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("redis: marshal cycle %s: %w", c.ID, err)
		}
		last = string(data)

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: StreamKey(c.Instrument),
			MaxLen: p.cfg.StreamMaxLen,
			Approx: true,
			Values: map[string]any{"data": last},
		})
		pipe.Publish(ctx, Channel(c.Instrument), last)
	}
	newest := cycles[len(cycles)-1]
	pipe.Set(ctx, LatestKey(newest.Instrument), last, p.cfg.LatestTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] publish pipeline error (%d cycles): %v", len(cycles), err)
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *Publisher) takePending() []report.Cycle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out
}

func (p *Publisher) hold(cycles []report.Cycle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, cycles...)
	if over := len(p.pending) - p.cfg.MaxPending; over > 0 {
		p.pending = p.pending[over:]
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
