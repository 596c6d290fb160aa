package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ReadingProcessed(ResultSaved)
	m.ReadingProcessed(ResultSaved)
	m.ReadingProcessed(ResultMalformed)
	m.GatewayStatsProcessed(ResultStorage)
	m.AlertRaised("presence")
	m.NotifyFailed("redis")
	m.ObserveIngest("http", time.Now())
	m.SetWebsocketClients(3)

	out := scrape(t, m)
	assert.Contains(t, out, `envmon_readings_total{result="saved"} 2`)
	assert.Contains(t, out, `envmon_readings_total{result="malformed"} 1`)
	assert.Contains(t, out, `envmon_gateway_stats_total{result="storage_error"} 1`)
	assert.Contains(t, out, `envmon_alerts_total{type="presence"} 1`)
	assert.Contains(t, out, `envmon_notify_errors_total{notifier="redis"} 1`)
	assert.Contains(t, out, `envmon_ingest_duration_seconds_count{source="http"} 1`)
	assert.Contains(t, out, `envmon_websocket_clients 3`)
	assert.Contains(t, out, "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.ReadingProcessed(ResultSaved)

	assert.Contains(t, scrape(t, a), `envmon_readings_total{result="saved"} 1`)
	assert.NotContains(t, scrape(t, b), `envmon_readings_total{result="saved"}`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ReadingProcessed(ResultSaved)
		m.GatewayStatsProcessed(ResultSaved)
		m.AlertRaised("presence")
		m.NotifyFailed("ws")
		m.ObserveIngest("mqtt", time.Now())
		m.SetWebsocketClients(1)
	})
}
