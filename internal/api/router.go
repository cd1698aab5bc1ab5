// Package api serves the trading loop's status surface over HTTP and
// streams finished cycles over WebSocket.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeloop/internal/loop"
	"tradeloop/internal/report"
)

// LoopStatus is the read-only view of a running loop.
type LoopStatus interface {
	State() loop.State
	Cycles() uint64
	Config() loop.Config
}

// Deps are the components the router exposes. Nil fields disable their
// routes (Health falls back to a static "ok").
type Deps struct {
	Loop     LoopStatus
	History  *report.History
	Health   http.Handler
	Hub      *Hub
	Gatherer prometheus.Gatherer
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Instrument   string        `json:"instrument"`
	Interval     string        `json:"interval"`
	PollInterval string        `json:"poll_interval"`
	AutoTrade    bool          `json:"auto_trade"`
	Indicators   []string      `json:"indicators"`
	Rules        []string      `json:"rules"`
	Quantity     string        `json:"quantity"`
	State        loop.State    `json:"state"`
	Cycles       uint64        `json:"cycles"`
	Latest       *report.Cycle `json:"latest,omitempty"`
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	health := d.Health
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	r.Method(http.MethodGet, "/api/v1/health", health)

	if d.Loop != nil {
		r.Get("/api/v1/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, buildStatus(d.Loop, d.History))
		})
	}
	if d.History != nil {
		r.Get("/api/v1/history", historyHandler(d.History))
	}
	if d.Hub != nil {
		r.Method(http.MethodGet, "/api/v1/stream", d.Hub)
	}

	g := d.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return r
}

func buildStatus(l LoopStatus, h *report.History) StatusResponse {
	cfg := l.Config()
	resp := StatusResponse{
		Instrument:   cfg.Instrument,
		Interval:     cfg.Interval.String(),
		PollInterval: cfg.PollInterval.String(),
		AutoTrade:    cfg.AutoTrade,
		Quantity:     cfg.Quantity.String(),
		State:        l.State(),
		Cycles:       l.Cycles(),
	}
	for _, n := range cfg.Indicators {
		resp.Indicators = append(resp.Indicators, string(n))
	}
	for _, r := range cfg.Rules {
		resp.Rules = append(resp.Rules, string(r))
	}
	if h != nil {
		if c, ok := h.Latest(); ok {
			resp.Latest = &c
		}
	}
	return resp
}

// historyHandler returns the retained cycles newest first. ?limit=N caps
// the count; ?since=RFC3339 drops cycles that started at or before it.
func historyHandler(h *report.History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		var since time.Time
		if s := q.Get("since"); s != "" {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
				return
			}
			since = t
		}

		all := h.All()
		out := make([]report.Cycle, 0, len(all))
		for i := len(all) - 1; i >= 0; i-- {
			if !since.IsZero() && !all[i].StartedAt.After(since) {
				continue
			}
			out = append(out, all[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"total": h.Total(), "cycles": out})
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
