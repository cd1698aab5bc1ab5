// Package metrics exposes Prometheus instrumentation and a health status for
// the trading loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the trading loop.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec // labels: outcome=ok|issue|cancelled
	IssuesTotal   *prometheus.CounterVec // labels: kind
	SignalsTotal  *prometheus.CounterVec // labels: kind, rule
	OrdersTotal   *prometheus.CounterVec // labels: side, status
	CycleDur      prometheus.Histogram
	FetchDur      prometheus.Histogram
	IndicatorDur  prometheus.Histogram
	State         prometheus.Gauge // numeric loop state, see loop.State
	LastClose     *prometheus.GaugeVec
	ReportDropped prometheus.Counter

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisSkippedWrites       prometheus.Counter
}

// NewMetrics creates all metrics and registers them on reg
// (prometheus.DefaultRegisterer if nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeloop_cycles_total",
			Help: "Completed loop cycles by outcome",
		}, []string{"outcome"}),
		IssuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeloop_issues_total",
			Help: "Recovered cycle failures by kind",
		}, []string{"kind"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeloop_signals_total",
			Help: "Emitted trade signals",
		}, []string{"kind", "rule"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeloop_orders_total",
			Help: "Order submissions by side and status",
		}, []string{"side", "status"}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeloop_cycle_duration_seconds",
			Help:    "Wall time of one cycle, excluding the cadence sleep",
			Buckets: prometheus.DefBuckets,
		}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeloop_fetch_duration_seconds",
			Help:    "Market data fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		IndicatorDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeloop_indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per series",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeloop_state",
			Help: "Loop state (0=idle, 1=polling, 2=evaluating, 3=acting, 4=sleeping, 5=cancelled)",
		}),
		LastClose: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradeloop_last_close",
			Help: "Close of the newest fetched candle",
		}, []string{"instrument"}),
		ReportDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeloop_report_dropped_total",
			Help: "Cycle reports dropped on a full reporter queue",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeloop_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeloop_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisSkippedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeloop_redis_skipped_writes_total",
			Help: "Cycle publishes skipped while the Redis circuit breaker was open",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.IssuesTotal,
		m.SignalsTotal,
		m.OrdersTotal,
		m.CycleDur,
		m.FetchDur,
		m.IndicatorDur,
		m.State,
		m.LastClose,
		m.ReportDropped,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisSkippedWrites,
	)

	return m
}
