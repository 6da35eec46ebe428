package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// bookingColumns is the column list used for SELECT statements on the bookings table.
const bookingColumns = `hash_id, event_id, status, start_time, timezone, duration,
	invitees, location, fields, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateBooking(ctx context.Context, db executor, b *model.Booking) error {
	invitees, location, fields, err := bookingJSON(b)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO bookings (
			hash_id, event_id, status, start_time, timezone, duration,
			invitees, location, fields
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9
		)
		RETURNING created_at`,
		b.HashID,
		b.EventID,
		string(b.Status),
		b.StartTime,
		b.Timezone,
		b.Duration,
		invitees,
		location,
		fields,
	).Scan(&b.CreatedAt)
}

func queryGetBooking(ctx context.Context, db executor, hashID string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE hash_id = $1`, hashID)
	return scanBooking(row)
}

func queryListBookings(ctx context.Context, db executor, filter model.BookingFilter) ([]*model.Booking, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.EventID != "" {
		whereClauses = append(whereClauses, "event_id = "+nextArg())
		args = append(args, filter.EventID)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + bookingColumns + " FROM bookings" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	var total int
	for rows.Next() {
		b, t, err := scanBookingWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan bookings: %w", err)
		}
		total = t
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan bookings: %w", err)
	}

	return bookings, total, nil
}

func queryCancelBooking(ctx context.Context, db executor, hashID string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE bookings SET status = $2
		WHERE hash_id = $1
		RETURNING `+bookingColumns,
		hashID, string(model.BookingCancelled),
	)
	return scanBooking(row)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, subject, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.Subject, nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, subject string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, subject, actor, payload, created_at
		FROM events
		WHERE subject = $1
		ORDER BY created_at ASC`,
		subject,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func querySetConfig(ctx context.Context, db executor, c *model.Config) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO configs (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
		RETURNING created_at, updated_at`,
		c.Key, []byte(c.Value),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func queryGetConfig(ctx context.Context, db executor, key string) (*model.Config, error) {
	row := db.QueryRowContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs WHERE key = $1`, key)
	return scanConfig(row)
}

func queryListConfigs(ctx context.Context, db executor, namespace string) ([]*model.Config, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs WHERE key LIKE $1 || ':%'
		ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func queryListAllConfigs(ctx context.Context, db executor) ([]*model.Config, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func queryDeleteConfig(ctx context.Context, db executor, key string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM configs WHERE key = $1`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func parseSortClause(sort string) string {
	if sort == "" {
		return "start_time DESC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"start_time": true, "created_at": true, "event_id": true,
		"status": true, "duration": true,
	}
	if !allowed[col] {
		return "start_time DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
