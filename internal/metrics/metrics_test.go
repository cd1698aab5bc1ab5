package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	// Two instances on separate registries must not collide.
	m1 := NewMetrics(prometheus.NewRegistry())
	m2 := NewMetrics(prometheus.NewRegistry())

	m1.SignalsTotal.WithLabelValues("BUY", "RSI").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m1.SignalsTotal.WithLabelValues("BUY", "RSI")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.SignalsTotal.WithLabelValues("BUY", "RSI")))
}

func TestHealth_DegradedWhenLoopStopped(t *testing.T) {
	h := NewHealthStatus()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetLoopRunning(true)
	h.RecordCycle(time.Now(), true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["last_cycle_ok"])
}

func TestHealth_RedisProbe(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(assert.AnError)

	h := NewHealthStatus()
	h.SetLoopRunning(true)
	h.EnableRedis(true)
	h.CheckRedis(context.Background(), db)
	require.NoError(t, mock.ExpectationsWereMet())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}
