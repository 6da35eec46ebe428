package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

func TestExportJSONL_Empty(t *testing.T) {
	ms := newMockStore()
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.BookingCount != 0 || h.ConfigCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_WithBookingsAndConfigs(t *testing.T) {
	ms := newMockStore()
	now := time.Now().UTC()

	ms.bookings["qb-aaa"] = &model.Booking{
		HashID: "qb-aaa", EventID: "evt-1", Status: model.BookingScheduled,
		StartTime: now, Timezone: "UTC", Duration: 30,
		Invitees: []model.Invitee{{Name: "Ada", Email: "ada@example.com"}},
		Fields:   map[string]any{"company": "ACME <Ltd>"},
	}
	ms.bookings["qb-zzz"] = &model.Booking{HashID: "qb-zzz", EventID: "evt-1", Status: model.BookingCancelled, StartTime: now, Duration: 30}
	ms.configs["fields:evt-1"] = &model.Config{Key: "fields:evt-1", Value: json.RawMessage(`[]`), CreatedAt: now, UpdatedAt: now}
	ms.configs["event:evt-1"] = &model.Config{Key: "event:evt-1", Value: json.RawMessage(`{}`), CreatedAt: now, UpdatedAt: now}

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ms.lastFilter.Limit != 0 {
		t.Errorf("export listed bookings with limit %d; backups must be complete", ms.lastFilter.Limit)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 bookings + 2 configs
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.BookingCount != 2 || h.ConfigCount != 2 {
		t.Fatalf("header counts: booking=%d config=%d", h.BookingCount, h.ConfigCount)
	}

	var got []string
	for _, line := range lines[1:] {
		var rec struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal %s: %v", line, err)
		}
		switch rec.Type {
		case "booking":
			var b model.Booking
			if err := json.Unmarshal(rec.Data, &b); err != nil {
				t.Fatal(err)
			}
			got = append(got, b.HashID)
		case "config":
			var c model.Config
			if err := json.Unmarshal(rec.Data, &c); err != nil {
				t.Fatal(err)
			}
			got = append(got, c.Key)
		default:
			t.Fatalf("unexpected record type %q", rec.Type)
		}
	}
	want := []string{"qb-aaa", "qb-zzz", "event:evt-1", "fields:evt-1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("record order = %v, want %v", got, want)
	}

	if !strings.Contains(buf.String(), "ACME <Ltd>") {
		t.Error("HTML in answers should not be escaped")
	}
}

func TestExportJSONL_ListError(t *testing.T) {
	ms := newMockStore()
	ms.listErr = errors.New("db down")

	err := ExportJSONL(context.Background(), ms, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "list bookings") {
		t.Fatalf("expected wrapped list error, got %v", err)
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
