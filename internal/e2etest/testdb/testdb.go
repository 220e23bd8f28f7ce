// Package testdb hands end-to-end tests a migrated PostgreSQL database.
package testdb

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

const dsnEnv = "TEST_DATABASE_URI"

// ErrNoDatabase is returned when no test database is configured.
var ErrNoDatabase = errors.New(dsnEnv + " is not set")

type TestDBInstance struct {
	DSN string
}

func NewTestDBInstance() (*TestDBInstance, error) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		return nil, ErrNoDatabase
	}
	return &TestDBInstance{DSN: dsn}, nil
}

// Truncate empties every table so each test starts from a clean catalog.
func (db *TestDBInstance) Truncate(ctx context.Context) error {
	return db.exec(ctx, `TRUNCATE line_items, orders, books RESTART IDENTITY CASCADE`)
}

// Down drops the schema created by the migrations.
func (db *TestDBInstance) Down() error {
	return db.exec(context.Background(),
		`DROP TABLE IF EXISTS line_items, orders, books, schema_migrations CASCADE`)
}

func (db *TestDBInstance) exec(ctx context.Context, sql string) error {
	conn, err := pgx.Connect(ctx, db.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to test db: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to reset test db: %w", err)
	}
	return nil
}
