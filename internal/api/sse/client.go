// Package sse streams a player's projected game view as server-sent events.
package sse

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/avalon/internal/api/apierr"
	"github.com/mcoot/avalon/internal/dependencies/random"
	"github.com/mcoot/avalon/internal/metrics"
	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/services/notifier"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 16

	// Event names
	EventConnected = "connected"
	EventState     = "state"

	transport = "sse"
)

var errBufferFull = errors.New("sse client buffer full")

// Streamer serves SSE subscriptions backed by the notifier
type Streamer struct {
	notifier *notifier.Notifier
	random   random.Random
	metrics  *metrics.Metrics
	logger   *slog.Logger

	pingPeriod time.Duration
}

// NewStreamer creates a new Streamer
func NewStreamer(n *notifier.Notifier, rnd random.Random, m *metrics.Metrics, logger *slog.Logger) *Streamer {
	return &Streamer{
		notifier:   n,
		random:     rnd,
		metrics:    m,
		logger:     logger.With(slog.String("component", "sse")),
		pingPeriod: pingPeriod,
	}
}

// client is one connected SSE stream
type client struct {
	id   string
	send chan *model.GameView
}

// push queues a view for the stream without blocking the notifier
func (c *client) push(view *model.GameView) error {
	select {
	case c.send <- view:
		return nil
	default:
		return errBufferFull
	}
}

// Serve subscribes to the channel and streams state events until the client disconnects
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, ch notifier.Channel) {
	// Check if SSE is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{id: s.random.UUID(), send: make(chan *model.GameView, sendBufferSize)}
	initial, err := s.notifier.Subscribe(r.Context(), c.id, ch, c.push)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	defer s.notifier.Unsubscribe(c.id, ch)

	data, err := json.Marshal(initial)
	if err != nil {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	connections := s.metrics.OpenConnections.WithLabelValues(transport)
	connections.Inc()
	defer connections.Dec()

	connectedAt := time.Now()
	s.logger.Info("sse client connected",
		slog.String("subscriber", c.id),
		slog.String("channel", ch.String()),
	)
	defer func() {
		s.logger.Info("sse client disconnected",
			slog.String("subscriber", c.id),
			slog.Duration("connection_duration", time.Since(connectedAt)),
		)
	}()

	// Send initial connection event and current state
	_, _ = w.Write(formatMessage(EventConnected, `{"status":"connected"}`))
	_, _ = w.Write(formatMessage(EventState, string(data)))
	flusher.Flush()

	// Create ticker for keepalive
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	// views only move forward; a push no newer than what was written is dropped
	written := initial.Version
	for {
		select {
		case view := <-c.send:
			if view.Version <= written {
				s.metrics.StalePushes.Inc()
				continue
			}
			data, err := json.Marshal(view)
			if err != nil {
				s.logger.Error("failed to encode view", slog.String("error", err.Error()))
				continue
			}
			if _, err := w.Write(formatMessage(EventState, string(data))); err != nil {
				return
			}
			written = view.Version
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
