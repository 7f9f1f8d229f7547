package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "avalon"

// Outcomes recorded for game actions
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the engine's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Actions         *prometheus.CounterVec
	ActionLatency   *prometheus.HistogramVec
	Subscriptions   prometheus.Gauge
	Channels        prometheus.Gauge
	Pushes          prometheus.Counter
	PushFailures    prometheus.Counter
	StalePushes     prometheus.Counter
	OpenConnections *prometheus.GaugeVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Game actions by action name and outcome",
		}, []string{"action", "outcome"}),
		ActionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_latency_seconds",
			Help:      "Game action latency including the store round-trip",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"action"}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Live game state subscriptions",
		}),
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Game+player channels with at least one subscriber",
		}),
		Pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Projected game views delivered to subscribers",
		}),
		PushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Subscriber projections or callbacks that failed",
		}),
		StalePushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_pushes_total",
			Help:      "Pushed views dropped because the connection already sent a newer version",
		}),
		OpenConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Open push connections by transport",
		}, []string{"transport"}),
	}

	m.registry.MustRegister(
		m.Actions,
		m.ActionLatency,
		m.Subscriptions,
		m.Channels,
		m.Pushes,
		m.PushFailures,
		m.StalePushes,
		m.OpenConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveAction records the outcome and latency of one game action
func (m *Metrics) ObserveAction(action, outcome string, started time.Time) {
	m.Actions.WithLabelValues(action, outcome).Inc()
	m.ActionLatency.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
