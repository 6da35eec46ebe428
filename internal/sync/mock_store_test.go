package sync

import (
	"context"
	"sort"

	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/store"
)

// mockStore serves the two listings an export reads. The embedded nil
// Store makes any other call panic, so a test fails loudly if sync starts
// writing.
type mockStore struct {
	store.Store

	bookings map[string]*model.Booking
	configs  map[string]*model.Config
	listErr  error

	lastFilter model.BookingFilter
}

func newMockStore() *mockStore {
	return &mockStore{
		bookings: make(map[string]*model.Booking),
		configs:  make(map[string]*model.Config),
	}
}

// ListBookings returns bookings newest hash id first, so export has to sort.
func (m *mockStore) ListBookings(_ context.Context, f model.BookingFilter) ([]*model.Booking, int, error) {
	m.lastFilter = f
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	out := make([]*model.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HashID > out[j].HashID })
	return out, len(out), nil
}

func (m *mockStore) ListAllConfigs(context.Context) ([]*model.Config, error) {
	out := make([]*model.Config, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	return out, nil
}
