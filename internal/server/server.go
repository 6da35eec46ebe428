package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/quillbooking/internal/events"
	"github.com/alfredjeanlab/quillbooking/internal/metrics"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/store"
)

// Server serves the field schema, event meta and booking endpoints.
type Server struct {
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	stream    *eventStream

	// ConfirmURL is the base of the confirmation page returned to guests
	// after booking. Empty means no redirect is offered.
	ConfirmURL string
}

// NewServer returns a Server backed by the given store and publisher.
// A nil metrics collection gets a private one.
func NewServer(s store.Store, p events.Publisher, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		store:     s,
		publisher: p,
		metrics:   m,
		stream:    newEventStream(),
	}
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *Server) recordAndPublish(ctx context.Context, topic, subject, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "subject", subject, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:   topic,
		Subject: subject,
		Actor:   actor,
		Payload: payload,
	}); err != nil {
		slog.Warn("failed to record event", "topic", topic, "subject", subject, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, subject, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "subject", subject, "error", err)
	} else {
		s.metrics.EventsPublished.WithLabelValues(topic).Inc()
	}
	s.stream.publish(topic, subject, payload)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
