package metrics

import (
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
	return rec.Body.String()
}

func TestObserveActionCountsByOutcome(t *testing.T) {
	m := New()

	m.ObserveAction("joinGame", OutcomeOK, time.Now())
	m.ObserveAction("joinGame", OutcomeOK, time.Now())
	m.ObserveAction("joinGame", OutcomeRejected, time.Now())

	body := scrape(t, m)
	assert.Contains(t, body, `avalon_actions_total{action="joinGame",outcome="ok"} 2`)
	assert.Contains(t, body, `avalon_actions_total{action="joinGame",outcome="rejected"} 1`)
	assert.Contains(t, body, `avalon_action_latency_seconds_count{action="joinGame"} 3`)
}

func TestSeparateInstancesDoNotShareRegistry(t *testing.T) {
	a := New()
	b := New()

	a.Pushes.Inc()
	assert.Contains(t, scrape(t, a), "avalon_pushes_total 1")
	assert.Contains(t, scrape(t, b), "avalon_pushes_total 0")
}

func TestGaugesExposed(t *testing.T) {
	m := New()
	m.Subscriptions.Set(3)
	m.OpenConnections.WithLabelValues("websocket").Inc()

	body := scrape(t, m)
	assert.Contains(t, body, "avalon_subscriptions 3")
	assert.Contains(t, body, `avalon_open_connections{transport="websocket"} 1`)
}
