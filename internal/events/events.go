package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// Event topic constants
const (
	TopicFieldsSaved      = "quill.fields.saved"
	TopicFieldsPatched    = "quill.fields.patched"
	TopicEventUpdated     = "quill.event.updated"
	TopicBookingCreated   = "quill.booking.created"
	TopicBookingCancelled = "quill.booking.cancelled"
)

// TopicAll matches every topic published by the server.
const TopicAll = "quill.>"

// Event types

type FieldsSaved struct {
	EventID string              `json:"event_id"`
	Fields  []model.FieldSchema `json:"fields"`
}

type FieldsPatched struct {
	EventID  string              `json:"event_id"`
	FieldIDs []string            `json:"field_ids"`
	Fields   []model.FieldSchema `json:"fields"`
}

type EventUpdated struct {
	Meta *model.EventMeta `json:"meta"`
}

type BookingCreated struct {
	Booking *model.Booking `json:"booking"`
}

type BookingCancelled struct {
	Booking *model.Booking `json:"booking"`
}

// Message is one payload received from the bus.
type Message struct {
	Topic string
	Data  []byte

	// Subject is the event id or booking hash id the payload is about,
	// empty for publishers that do not set it.
	Subject string

	// Published is the publisher's clock at send time, zero when absent.
	Published time.Time
}

// FromRecord converts a stored audit record into the message that was
// published for it.
func FromRecord(e *model.Event) Message {
	return Message{Topic: e.Topic, Data: e.Payload, Subject: e.Subject, Published: e.CreatedAt}
}

// Describe renders a one-line summary of a message for terminal output.
// Payloads that do not decode fall back to the raw topic.
func Describe(msg Message) string {
	switch msg.Topic {
	case TopicFieldsSaved:
		var e FieldsSaved
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("fields saved for %s (%d fields)", e.EventID, len(e.Fields))
		}
	case TopicFieldsPatched:
		var e FieldsPatched
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("fields patched for %s: %s", e.EventID, strings.Join(e.FieldIDs, ", "))
		}
	case TopicEventUpdated:
		var e EventUpdated
		if json.Unmarshal(msg.Data, &e) == nil && e.Meta != nil {
			return fmt.Sprintf("event %s updated", e.Meta.ID)
		}
	case TopicBookingCreated, TopicBookingCancelled:
		var e BookingCreated
		if json.Unmarshal(msg.Data, &e) == nil && e.Booking != nil {
			verb := "created"
			if msg.Topic == TopicBookingCancelled {
				verb = "cancelled"
			}
			return fmt.Sprintf("booking %s %s for %s at %s", e.Booking.HashID, verb,
				e.Booking.EventID, e.Booking.StartTime.Format("2006-01-02 15:04"))
		}
	}
	return msg.Topic
}

// Publisher emits domain events. subject is the event id or booking hash
// id the event concerns.
type Publisher interface {
	Publish(ctx context.Context, topic, subject string, event any) error
	Close() error
}
