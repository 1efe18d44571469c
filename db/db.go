package db

import (
	"context"
	"database/sql"

	"github.com/juju/clock"
	"github.com/juju/errors"
	_ "modernc.org/sqlite"
)

// DB represents our database layer
type DB struct {
	*sql.DB
	clock clock.Clock
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the clock used to stamp created_at columns.
func WithClock(clk clock.Clock) Option {
	return func(db *DB) {
		db.clock = clk
	}
}

// NewDB initializes and connects to the SQLite database
func NewDB(dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open database")
	}

	// A single connection serializes writers, so SQLite never reports
	// "database is locked" under concurrent registrations.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, errors.Annotate(err, "failed to ping database")
	}

	db := &DB{DB: sqlDB, clock: clock.WallClock}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "failed to begin tx")
	}
	defer tx.Rollback() // Safe to call even if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Annotate(err, "failed to commit tx")
	}
	return nil
}
