// Package postgres provides a Postgres-backed storage driver persisting
// records as JSONB rows, with partial updates applied server-side via jsonb
// concatenation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/methodin/KeyValueStore/internal/infra/storage/storagekey"
	"github.com/methodin/KeyValueStore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the driver satisfies the domain interface.
var _ domain.Driver = (*Driver)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenStorageDriver defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/kvstore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Driver stores one JSONB row per record keyed by storage name and canonical
// key. Composite primary keys and partial updates are both supported.
type Driver struct {
	db *sql.DB
}

// NewDriver opens a Postgres connection using the provided DSN (falls back to
// defaultDSN) and ensures the records table exists.
func NewDriver(ctx context.Context, dsn string) (*Driver, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS records (
		storage TEXT NOT NULL,
		id TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (storage, id)
	)`); err != nil {
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	return &Driver{db: db}, nil
}

// Find fetches a record by key.
func (d *Driver) Find(ctx context.Context, storageName string, key any) (domain.Record, bool, error) {
	var payload []byte
	err := d.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE storage = $1 AND id = $2`,
		storageName, storagekey.Canonical(key)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select record: %w", err)
	}
	var rec domain.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}

// Insert stores a new record; the primary key constraint rejects duplicates.
func (d *Driver) Insert(ctx context.Context, storageName string, key any, data domain.Record) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, `INSERT INTO records(storage, id, payload) VALUES($1, $2, $3)`,
		storageName, storagekey.Canonical(key), payload); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Update merges a partial change set into the stored payload server-side.
func (d *Driver) Update(ctx context.Context, storageName string, key any, changes domain.Record) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	res, err := d.db.ExecContext(ctx, `UPDATE records SET payload = payload || $1::jsonb WHERE storage = $2 AND id = $3`,
		payload, storageName, storagekey.Canonical(key))
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %q not found in %q", storagekey.Canonical(key), storageName)
	}
	return nil
}

// Delete removes a record by key.
func (d *Driver) Delete(ctx context.Context, storageName string, key any) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE storage = $1 AND id = $2`,
		storageName, storagekey.Canonical(key))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %q not found in %q", storagekey.Canonical(key), storageName)
	}
	return nil
}

// SupportsCompositePrimaryKeys reports composite key support.
func (d *Driver) SupportsCompositePrimaryKeys() bool { return true }

// SupportsPartialUpdates reports partial update support.
func (d *Driver) SupportsPartialUpdates() bool { return true }

// DB exposes the underlying sql.DB for integration testing hooks.
func (d *Driver) DB() *sql.DB { return d.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
