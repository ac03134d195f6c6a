package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Common errors
var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("storage unavailable")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Options holds connection settings for Open.
type Options struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	driverName := opts.Driver
	switch driverName {
	case "sqlite":
		driverName = "sqlite3"
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}

	db, err := sql.Open(driverName, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return db, nil
}

// Schema creates the offers, ratings, and ingest_runs tables when they
// do not already exist. The DDL is deliberately portable between SQLite
// and Postgres.
func Schema(ctx context.Context, db DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS offers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price DOUBLE PRECISION,
			description TEXT NOT NULL DEFAULT '',
			product_ids TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ratings (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			rated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_product ON ratings (product_id)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id INTEGER PRIMARY KEY,
			products INTEGER NOT NULL,
			finished_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}
