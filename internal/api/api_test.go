package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeloop/internal/loop"
	"tradeloop/internal/metrics"
	"tradeloop/internal/report"
	"tradeloop/internal/strategy"
)

type stubLoop struct {
	state  loop.State
	cycles uint64
}

func (s stubLoop) State() loop.State   { return s.state }
func (s stubLoop) Cycles() uint64      { return s.cycles }
func (s stubLoop) Config() loop.Config { return loop.DefaultConfig() }

func cycleAt(seq uint64, at time.Time) report.Cycle {
	return report.Cycle{
		ID:         fmt.Sprintf("BTCUSDT-%d", seq),
		Seq:        seq,
		Instrument: "BTCUSDT",
		Interval:   "5m",
		StartedAt:  at,
		FinishedAt: at.Add(time.Second),
		State:      "SLEEPING",
		Signals: []strategy.Signal{
			{Action: strategy.ActionBuy, Rule: strategy.RuleRSI, Reason: "RSI below 30"},
		},
	}
}

func TestStatus(t *testing.T) {
	hist := report.NewHistory(10)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, hist.Report(context.Background(), cycleAt(1, t0)))
	require.NoError(t, hist.Report(context.Background(), cycleAt(2, t0.Add(time.Minute))))

	srv := httptest.NewServer(NewRouter(Deps{
		Loop:    stubLoop{state: loop.StateSleeping, cycles: 2},
		History: hist,
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body struct {
		Instrument string       `json:"instrument"`
		State      string       `json:"state"`
		Cycles     uint64       `json:"cycles"`
		Indicators []string     `json:"indicators"`
		Quantity   string       `json:"quantity"`
		Latest     report.Cycle `json:"latest"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "BTCUSDT", body.Instrument)
	assert.Equal(t, "SLEEPING", body.State)
	assert.Equal(t, uint64(2), body.Cycles)
	assert.Equal(t, []string{"SMA", "RSI"}, body.Indicators)
	assert.Equal(t, "1", body.Quantity)
	assert.Equal(t, uint64(2), body.Latest.Seq)
}

func TestHistory(t *testing.T) {
	hist := report.NewHistory(10)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		require.NoError(t, hist.Report(context.Background(), cycleAt(uint64(i), t0.Add(time.Duration(i)*time.Minute))))
	}
	srv := httptest.NewServer(NewRouter(Deps{History: hist}))
	defer srv.Close()

	get := func(query string) (int, []report.Cycle) {
		resp, err := http.Get(srv.URL + "/api/v1/history" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body struct {
			Total  uint64         `json:"total"`
			Cycles []report.Cycle `json:"cycles"`
		}
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, uint64(4), body.Total)
		}
		return resp.StatusCode, body.Cycles
	}

	code, all := get("")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, all, 4)
	assert.Equal(t, uint64(4), all[0].Seq, "newest first")

	_, limited := get("?limit=2")
	require.Len(t, limited, 2)
	assert.Equal(t, uint64(3), limited[1].Seq)

	_, since := get("?since=" + t0.Add(2*time.Minute).Format(time.RFC3339))
	require.Len(t, since, 2)
	assert.Equal(t, uint64(3), since[1].Seq)

	code, _ = get("?limit=-1")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get("?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealth(t *testing.T) {
	h := metrics.NewHealthStatus()
	srv := httptest.NewServer(NewRouter(Deps{Health: h}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "loop not running yet")

	h.SetLoopRunning(true)
	resp, err = http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth_DefaultAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.CyclesTotal.WithLabelValues("ok").Inc()

	srv := httptest.NewServer(NewRouter(Deps{Gatherer: reg}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var sb bytes.Buffer
	_, err = sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `tradeloop_cycles_total{outcome="ok"} 1`)

	// Status and history are not mounted without their dependencies.
	resp, err = http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type wsEnvelope struct {
	Type string       `json:"type"`
	Seq  int64        `json:"seq"`
	TS   string       `json:"ts"`
	Data report.Cycle `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env wsEnvelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestStream_LatestOnConnectThenLive(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := httptest.NewServer(NewRouter(Deps{Hub: hub}))
	defer srv.Close()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, hub.Report(context.Background(), cycleAt(1, t0)))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readEnvelope(t, conn)
	assert.Equal(t, "cycle", first.Type)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, uint64(1), first.Data.Seq)
	require.Len(t, first.Data.Signals, 1)
	assert.Equal(t, "Buy Signal (RSI below 30)", first.Data.Signals[0].String())

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Report(context.Background(), cycleAt(2, t0.Add(time.Minute))))

	second := readEnvelope(t, conn)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, uint64(2), second.Data.Seq)
}

func TestStream_DisconnectRemovesClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Reporting with no clients still updates the latest envelope.
	require.NoError(t, hub.Report(context.Background(), cycleAt(1, time.Now())))
}

func TestEnvelope(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := envelope("cycle", 7, now, []byte(`{"seq":3}`))

	var env struct {
		Type string          `json:"type"`
		Seq  int64           `json:"seq"`
		TS   string          `json:"ts"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "cycle", env.Type)
	assert.Equal(t, int64(7), env.Seq)
	assert.Equal(t, "2024-03-01T10:00:00Z", env.TS)
	assert.JSONEq(t, `{"seq":3}`, string(env.Data))
}
