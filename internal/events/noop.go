package events

import "context"

// NoopPublisher discards events. serve uses it when no NATS URL is
// configured; the audit log and the SSE stream work without it.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
