package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	BookingCount int       `json:"booking_count"`
	ConfigCount  int       `json:"config_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every booking and config in the store as JSONL to w.
// Bookings are sorted by hash id and configs by key so that two exports of
// the same data are byte-identical apart from the header timestamp.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	bookings, _, err := s.ListBookings(ctx, model.BookingFilter{Sort: "created_at"})
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].HashID < bookings[j].HashID
	})

	configs, err := s.ListAllConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list configs: %w", err)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Key < configs[j].Key
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		BookingCount: len(bookings),
		ConfigCount:  len(configs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, b := range bookings {
		if err := enc.Encode(record{Type: "booking", Data: b}); err != nil {
			return fmt.Errorf("encode booking %s: %w", b.HashID, err)
		}
	}

	for _, c := range configs {
		if err := enc.Encode(record{Type: "config", Data: c}); err != nil {
			return fmt.Errorf("encode config %s: %w", c.Key, err)
		}
	}

	return nil
}
