package model

import "time"

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCancelled BookingStatus = "cancelled"
)

// IsValid checks whether the status is a known value.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingScheduled, BookingCancelled:
		return true
	}
	return false
}

// Invitee is a guest attending a booking.
type Invitee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Booking is a confirmed reservation created from a public form submission.
type Booking struct {
	HashID    string             `json:"hash_id"`
	EventID   string             `json:"event_id"`
	Status    BookingStatus      `json:"status"`
	StartTime time.Time          `json:"start_time"`
	Timezone  string             `json:"timezone"`
	Duration  int                `json:"duration"` // minutes
	Invitees  []Invitee          `json:"invitees"`
	Location  LocationDescriptor `json:"location"`
	Fields    map[string]any     `json:"fields,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// BookingFilter narrows a booking listing.
type BookingFilter struct {
	EventID string
	Status  []BookingStatus
	Sort    string // column name, "-" prefix for descending
	Limit   int
	Offset  int
}

// EventMeta is the booking-relevant configuration of one bookable event.
type EventMeta struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Duration  int              `json:"duration"`            // default length in minutes
	Durations []int            `json:"durations,omitempty"` // selectable lengths; empty means Duration only
	Locations []LocationOption `json:"locations,omitempty"`
}

// AllowsDuration reports whether minutes is a selectable length for the event.
func (m EventMeta) AllowsDuration(minutes int) bool {
	if len(m.Durations) == 0 {
		return m.Duration == 0 || minutes == m.Duration
	}
	for _, d := range m.Durations {
		if d == minutes {
			return true
		}
	}
	return false
}
