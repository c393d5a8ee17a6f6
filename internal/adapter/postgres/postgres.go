// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"weighttracker/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Startup connection retry: the database container often comes up after
// the service does.
const (
	openAttempts   = 5
	openRetryDelay = 2 * time.Second
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

var (
	_ domain.UserRepository        = (*DB)(nil)
	_ domain.MeasurementRepository = (*DB)(nil)
	_ domain.GoalRepository        = (*DB)(nil)
)

// New wraps an already open connection pool. No migrations are run.
func New(db *sql.DB) *DB {
	return &DB{sql: db}
}

// Open connects to PostgreSQL, retrying the ping, and applies all pending
// migrations.
func Open(ctx context.Context, dsn string) (*DB, error) {
	s, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	if err := pingWithRetry(ctx, s); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := MigrateUp(dsn); err != nil {
		_ = s.Close()
		return nil, err
	}
	return &DB{sql: s}, nil
}

func pingWithRetry(ctx context.Context, s *sql.DB) error {
	var err error
	for attempt := 1; attempt <= openAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = s.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == openAttempts {
			break
		}
		slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(openRetryDelay):
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping reports whether the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return mapErr(d.sql.PingContext(ctx))
}

// MigrateUp applies all pending migrations. The migrator opens and closes
// its own connection.
func MigrateUp(dsn string) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back every migration.
func MigrateDown(dsn string) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		slog.Warn("close migrator", "source_error", srcErr, "db_error", dbErr)
	}
}

// mapErr translates driver errors into domain errors. Unknown errors pass
// through unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, pqErr.Constraint)
		case pqErr.Code == "23503":
			return fmt.Errorf("%w: %s", domain.ErrNotFound, pqErr.Constraint)
		case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
