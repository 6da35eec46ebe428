package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanBooking scans a single row into a model.Booking.
// The row must contain columns in the order defined by bookingColumns.
func scanBooking(row scannable) (*model.Booking, error) {
	var b model.Booking
	var (
		status   string
		invitees []byte
		location []byte
		fields   []byte
	)
	err := row.Scan(
		&b.HashID, &b.EventID, &status, &b.StartTime, &b.Timezone, &b.Duration,
		&invitees, &location, &fields, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if err := decodeBookingJSON(&b, invitees, location, fields); err != nil {
		return nil, err
	}
	return &b, nil
}

// scanBookingWithTotal scans a row with a leading total_count column.
func scanBookingWithTotal(row scannable) (*model.Booking, int, error) {
	var b model.Booking
	var (
		total    int
		status   string
		invitees []byte
		location []byte
		fields   []byte
	)
	err := row.Scan(
		&total,
		&b.HashID, &b.EventID, &status, &b.StartTime, &b.Timezone, &b.Duration,
		&invitees, &location, &fields, &b.CreatedAt,
	)
	if err != nil {
		return nil, 0, err
	}
	b.Status = model.BookingStatus(status)
	if err := decodeBookingJSON(&b, invitees, location, fields); err != nil {
		return nil, 0, err
	}
	return &b, total, nil
}

func decodeBookingJSON(b *model.Booking, invitees, location, fields []byte) error {
	if len(invitees) > 0 {
		if err := json.Unmarshal(invitees, &b.Invitees); err != nil {
			return fmt.Errorf("decode invitees: %w", err)
		}
	}
	if len(location) > 0 {
		if err := json.Unmarshal(location, &b.Location); err != nil {
			return fmt.Errorf("decode location: %w", err)
		}
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &b.Fields); err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
	}
	return nil
}

// bookingJSON encodes the JSONB columns of a booking.
func bookingJSON(b *model.Booking) (invitees, location, fields []byte, err error) {
	list := b.Invitees
	if list == nil {
		list = []model.Invitee{}
	}
	if invitees, err = json.Marshal(list); err != nil {
		return nil, nil, nil, fmt.Errorf("encode invitees: %w", err)
	}
	if b.Location.Type != "" {
		if location, err = json.Marshal(b.Location); err != nil {
			return nil, nil, nil, fmt.Errorf("encode location: %w", err)
		}
	}
	if len(b.Fields) > 0 {
		if fields, err = json.Marshal(b.Fields); err != nil {
			return nil, nil, nil, fmt.Errorf("encode fields: %w", err)
		}
	}
	return invitees, location, fields, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.Subject, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanConfig scans a single row into a model.Config.
func scanConfig(row scannable) (*model.Config, error) {
	var c model.Config
	var value []byte
	err := row.Scan(&c.Key, &value, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Value = json.RawMessage(value)
	return &c, nil
}

// scanConfigs scans multiple rows into a slice of model.Config pointers.
func scanConfigs(rows *sql.Rows) ([]*model.Config, error) {
	var configs []*model.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
