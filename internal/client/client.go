// Package client provides a transport-agnostic interface for the quillbooking
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/submission"
)

// QuillClient is the interface the qb CLI uses to talk to the server. It is
// implemented by HTTPClient.
type QuillClient interface {
	// Field schema
	GetFields(ctx context.Context, eventID string) (*model.FieldGroups, error)
	ReplaceFields(ctx context.Context, eventID string, fields []model.FieldSchema) (*model.FieldGroups, error)
	PatchFields(ctx context.Context, eventID string, fields []model.FieldSchema) (*model.FieldGroups, error)

	// Events
	GetEventMeta(ctx context.Context, eventID string) (*model.EventMeta, error)
	SetEventMeta(ctx context.Context, meta *model.EventMeta) (*model.EventMeta, error)
	ListEvents(ctx context.Context) ([]*model.EventMeta, error)

	// Bookings
	SubmitBooking(ctx context.Context, p *submission.Payload) (*submission.Result, error)
	GetBooking(ctx context.Context, hashID string) (*model.Booking, error)
	ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error)
	CancelBooking(ctx context.Context, hashID string) (*model.Booking, error)

	// Audit
	GetAudit(ctx context.Context, subject string) ([]*model.Event, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ListBookingsRequest holds filters for listing bookings.
type ListBookingsRequest struct {
	EventID string
	Status  []string
	Sort    string
	Limit   int
	Offset  int
}

// ListBookingsResponse is the response from ListBookings.
type ListBookingsResponse struct {
	Bookings []*model.Booking `json:"bookings"`
	Total    int              `json:"total"`
}
