package store

import (
	"context"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// Store defines the persistence interface for bookings, audit events and
// configs. Field lists and event meta are stored as configs under the
// "fields:" and "event:" namespaces.
type Store interface {
	// Bookings
	CreateBooking(ctx context.Context, booking *model.Booking) error
	GetBooking(ctx context.Context, hashID string) (*model.Booking, error)
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int, error) // returns bookings, total count, error
	CancelBooking(ctx context.Context, hashID string) (*model.Booking, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, subject string) ([]*model.Event, error)

	// Configs
	SetConfig(ctx context.Context, config *model.Config) error
	GetConfig(ctx context.Context, key string) (*model.Config, error)
	ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error)
	ListAllConfigs(ctx context.Context) ([]*model.Config, error)
	DeleteConfig(ctx context.Context, key string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
