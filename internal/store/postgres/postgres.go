// Package postgres is the PostgreSQL implementation of store.Store.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool limits. Booking traffic is bursty but short-lived, so a small idle
// pool is enough.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// PostgresStore owns the connection pool.
type PostgresStore struct {
	queries
	db *sql.DB
}

var (
	_ store.Store = (*PostgresStore)(nil)
	_ store.Store = (*txStore)(nil)
)

// New connects to databaseURL and migrates the schema to the latest version.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := migrateUp(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database ready", "schema_version", version)
	return newStore(db), nil
}

func newStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{queries: queries{db}, db: db}
}

// migrateUp applies the embedded migrations and returns the resulting
// schema version.
func migrateUp(db *sql.DB) (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty; fix it by hand before restarting", version)
	}
	return version, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RunInTransaction calls fn with a store bound to one transaction, which
// commits if fn returns nil and rolls back otherwise.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// A no-op once committed.
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&txStore{queries{tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore is the store handed to RunInTransaction callbacks.
type txStore struct {
	queries
}

// RunInTransaction joins the enclosing transaction.
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op; the parent store owns the connection.
func (s *txStore) Close() error { return nil }

// queries binds the query functions to a pool or a transaction.
type queries struct {
	ex executor
}

func (q queries) CreateBooking(ctx context.Context, b *model.Booking) error {
	return queryCreateBooking(ctx, q.ex, b)
}

func (q queries) GetBooking(ctx context.Context, hashID string) (*model.Booking, error) {
	return queryGetBooking(ctx, q.ex, hashID)
}

func (q queries) ListBookings(ctx context.Context, f model.BookingFilter) ([]*model.Booking, int, error) {
	return queryListBookings(ctx, q.ex, f)
}

func (q queries) CancelBooking(ctx context.Context, hashID string) (*model.Booking, error) {
	return queryCancelBooking(ctx, q.ex, hashID)
}

func (q queries) RecordEvent(ctx context.Context, e *model.Event) error {
	return queryRecordEvent(ctx, q.ex, e)
}

func (q queries) GetEvents(ctx context.Context, subject string) ([]*model.Event, error) {
	return queryGetEvents(ctx, q.ex, subject)
}

func (q queries) SetConfig(ctx context.Context, c *model.Config) error {
	return querySetConfig(ctx, q.ex, c)
}

func (q queries) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return queryGetConfig(ctx, q.ex, key)
}

func (q queries) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return queryListConfigs(ctx, q.ex, namespace)
}

func (q queries) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return queryListAllConfigs(ctx, q.ex)
}

func (q queries) DeleteConfig(ctx context.Context, key string) error {
	return queryDeleteConfig(ctx, q.ex, key)
}
