// Package loop drives one instrument through fetch, indicator, signal and
// (optional) order steps on a fixed cadence until its context is cancelled.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"tradeloop/internal/indicator"
	"tradeloop/internal/logger"
	"tradeloop/internal/metrics"
	"tradeloop/internal/model"
	"tradeloop/internal/report"
	"tradeloop/internal/strategy"
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Loop is a single-instrument trading loop. Cycles never overlap; the only
// state shared between cycles is the read-only Config.
type Loop struct {
	cfg    Config
	md     model.MarketDataClient
	gw     model.ExecutionGateway
	engine *indicator.Engine
	eval   *strategy.Evaluator

	reporter report.Reporter
	archive  model.CandleArchive
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	log      *slog.Logger
	sleep    SleepFunc
	now      func() time.Time

	state   atomic.Int32
	seq     atomic.Uint64
	running atomic.Bool
}

// Option customizes a Loop.
type Option func(*Loop)

// WithReporter sets where finished cycles are delivered.
func WithReporter(r report.Reporter) Option { return func(l *Loop) { l.reporter = r } }

// WithArchive stores every fetched series. Archive failures are only logged.
func WithArchive(a model.CandleArchive) Option { return func(l *Loop) { l.archive = a } }

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(l *Loop) { l.metrics = m } }

// WithHealth updates the health status after every cycle.
func WithHealth(h *metrics.HealthStatus) Option { return func(l *Loop) { l.health = h } }

// WithLogger sets the structured logger (slog.Default otherwise).
func WithLogger(lg *slog.Logger) Option { return func(l *Loop) { l.log = lg } }

// WithSleep replaces the cadence wait, e.g. to run cycles back to back.
func WithSleep(f SleepFunc) Option { return func(l *Loop) { l.sleep = f } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// New validates cfg and builds a loop around the injected clients. gw may be
// nil only when auto-trade is off.
func New(cfg Config, md model.MarketDataClient, gw model.ExecutionGateway, opts ...Option) (*Loop, error) {
	eng, eval, err := cfg.build()
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, invalid("market data client is required")
	}
	if gw == nil && cfg.AutoTrade {
		return nil, invalid("auto-trade requires an execution gateway")
	}

	l := &Loop{
		cfg:    cfg,
		md:     md,
		gw:     gw,
		engine: eng,
		eval:   eval,
		sleep:  sleepCtx,
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	// A rule whose indicator is off stays silent; say so once.
	for _, r := range eval.Rules() {
		if !slices.Contains(eng.Requested(), r.Requires()) {
			l.log.Warn("signal rule has no input, it will never fire",
				"rule", string(r.Name()), "indicator", string(r.Requires()))
		}
	}
	l.setState(StateIdle)
	return l, nil
}

// Config returns the loop configuration.
func (l *Loop) Config() Config { return l.cfg }

// State returns the current state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Cycles returns how many cycles have started.
func (l *Loop) Cycles() uint64 { return l.seq.Load() }

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	if l.metrics != nil {
		l.metrics.State.Set(float64(s))
	}
}

// Run executes cycles until ctx is cancelled. Cancellation is observed before
// every blocking call and during the cadence sleep; Run then returns nil
// with the loop in StateCancelled.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("loop already running")
	}
	defer l.running.Store(false)

	if l.health != nil {
		l.health.SetLoopRunning(true)
		defer l.health.SetLoopRunning(false)
	}

	l.log.Info("trading loop started",
		"instrument", l.cfg.Instrument,
		"interval", l.cfg.Interval.String(),
		"poll_interval", l.cfg.PollInterval.String(),
		"fetch_limit", l.cfg.FetchLimit,
		"auto_trade", l.cfg.AutoTrade)

	for {
		c := l.RunCycle(ctx)
		if c.State == StateCancelled.String() || ctx.Err() != nil {
			break
		}
		l.setState(StateSleeping)
		if err := l.sleep(ctx, l.cfg.PollInterval); err != nil {
			break
		}
	}

	l.setState(StateCancelled)
	l.log.Info("trading loop stopped", "instrument", l.cfg.Instrument, "cycles", l.Cycles())
	return nil
}

// RunCycle performs one Polling → Evaluating → Acting pass and returns its
// report. Failures are recorded as issues on the report, never returned.
// The loop is left in StateSleeping, or StateCancelled if ctx ended first.
func (l *Loop) RunCycle(ctx context.Context) report.Cycle {
	seq := l.seq.Add(1)
	started := l.now()
	id := logger.GenerateCycleID(l.cfg.Instrument, seq, started)
	ctx = logger.WithCycleID(ctx, id)

	c := report.Cycle{
		ID:         id,
		Seq:        seq,
		Instrument: l.cfg.Instrument,
		Interval:   l.cfg.Interval,
		StartedAt:  started,
		AutoTrade:  l.cfg.AutoTrade,
	}

	final := l.cycle(ctx, &c)
	l.setState(final)
	return l.finish(ctx, c, final)
}

// cycle runs the steps and returns the state the cycle ended in.
func (l *Loop) cycle(ctx context.Context, c *report.Cycle) State {
	if ctx.Err() != nil {
		return StateCancelled
	}

	// Polling
	l.setState(StatePolling)
	fetchStart := time.Now()
	series, err := l.md.FetchCandles(ctx, l.cfg.Instrument, l.cfg.Interval, l.cfg.FetchLimit)
	if l.metrics != nil {
		l.metrics.FetchDur.Observe(time.Since(fetchStart).Seconds())
	}
	if ctx.Err() != nil {
		return StateCancelled
	}
	if err != nil {
		if !errors.Is(err, model.ErrDataFetch) {
			err = fmt.Errorf("%w: %v", model.ErrDataFetch, err)
		}
		l.addIssue(c, err)
		return StateSleeping
	}
	c.Candles = series.Len()
	if last, ok := series.Last(); ok && l.metrics != nil {
		l.metrics.LastClose.WithLabelValues(l.cfg.Instrument).Set(last.Close)
	}
	l.archiveSeries(ctx, series)

	// Evaluating
	l.setState(StateEvaluating)
	computeStart := time.Now()
	set, err := l.engine.Compute(series)
	if l.metrics != nil {
		l.metrics.IndicatorDur.Observe(time.Since(computeStart).Seconds())
	}
	c.Columns = report.Columns(set)
	c.Tail = report.BuildTail(series, set, report.TailRows)
	if err != nil {
		l.addIssue(c, err)
		return StateSleeping
	}
	c.Signals = l.eval.Evaluate(set)
	if l.metrics != nil {
		for _, s := range c.Signals {
			l.metrics.SignalsTotal.WithLabelValues(string(s.Action), string(s.Rule)).Inc()
		}
	}

	if !l.cfg.AutoTrade || len(c.Signals) == 0 {
		return StateSleeping
	}

	return l.act(ctx, c)
}

// act submits one order per signal in emission order. Cancellation is
// checked before every submit; a failed order is recorded and the rest
// still go out.
func (l *Loop) act(ctx context.Context, c *report.Cycle) State {
	l.setState(StateActing)
	for _, s := range c.Signals {
		if ctx.Err() != nil {
			return StateCancelled
		}
		req := model.OrderRequest{Instrument: l.cfg.Instrument, Side: s.Action.Side(), Qty: l.cfg.Quantity}
		conf, err := l.gw.SubmitOrder(ctx, req)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return StateCancelled
			}
			if !errors.Is(err, model.ErrOrderSubmission) {
				err = fmt.Errorf("%w: %v", model.ErrOrderSubmission, err)
			}
			c.Orders = append(c.Orders, report.OrderResult{Signal: s, Error: err.Error()})
			l.addIssue(c, err)
			if l.metrics != nil {
				l.metrics.OrdersTotal.WithLabelValues(string(req.Side), "ERROR").Inc()
			}
			continue
		}
		c.Orders = append(c.Orders, report.OrderResult{Signal: s, Confirmation: &conf})
		if l.metrics != nil {
			l.metrics.OrdersTotal.WithLabelValues(string(req.Side), conf.Status).Inc()
		}
	}
	return StateSleeping
}

func (l *Loop) addIssue(c *report.Cycle, err error) {
	is := report.NewIssue(l.cfg.Instrument, c.StartedAt, err)
	c.Issues = append(c.Issues, is)
	if l.metrics != nil {
		l.metrics.IssuesTotal.WithLabelValues(string(is.Kind)).Inc()
	}
}

func (l *Loop) archiveSeries(ctx context.Context, s model.Series) {
	if l.archive == nil {
		return
	}
	if err := l.archive.SaveSeries(ctx, s); err != nil {
		l.log.WarnContext(ctx, "archive failed", "error", err)
	}
}

// finish stamps the report, records metrics and hands it to the reporter.
func (l *Loop) finish(ctx context.Context, c report.Cycle, final State) report.Cycle {
	c.FinishedAt = l.now()
	c.State = final.String()

	if l.metrics != nil {
		outcome := "ok"
		switch {
		case final == StateCancelled:
			outcome = "cancelled"
		case !c.OK():
			outcome = "issue"
		}
		l.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
		l.metrics.CycleDur.Observe(c.Duration().Seconds())
	}
	if l.health != nil && final != StateCancelled {
		l.health.RecordCycle(c.FinishedAt, c.OK())
	}

	if l.reporter != nil {
		// A cancelled cycle is still reported; the reporter must not see a
		// dead context.
		if err := l.reporter.Report(context.WithoutCancel(ctx), c); err != nil {
			l.log.WarnContext(ctx, "cycle report failed", "error", err)
		}
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
