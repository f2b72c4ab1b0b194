// Package sqlite provides a storage driver persisting records as JSON blobs
// in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/methodin/KeyValueStore/internal/infra/storage/storagekey"
	"github.com/methodin/KeyValueStore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the driver satisfies the domain interface.
var _ domain.Driver = (*Driver)(nil)

// Driver addresses records by a single TEXT key per storage name. It writes
// whole records only: composite primary keys and partial updates are not
// supported, so the coordinator sends full merged records on update.
type Driver struct {
	db   *sql.DB
	path string
}

// NewDriver opens (or creates) the database file and ensures the records
// table exists.
func NewDriver(path string) (*Driver, error) {
	if path == "" {
		path = "kvstore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		storage TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (storage, id)
	)`); err != nil {
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &Driver{db: db, path: path}, nil
}

// Find fetches a record by key.
func (d *Driver) Find(ctx context.Context, storageName string, key any) (domain.Record, bool, error) {
	var payload []byte
	err := d.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE storage = ? AND id = ?`,
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
	if _, err := d.db.ExecContext(ctx, `INSERT INTO records(storage, id, payload) VALUES(?, ?, ?)`,
		storageName, storagekey.Canonical(key), payload); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Update replaces the stored payload with the full merged record.
func (d *Driver) Update(ctx context.Context, storageName string, key any, changes domain.Record) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	res, err := d.db.ExecContext(ctx, `UPDATE records SET payload = ? WHERE storage = ? AND id = ?`,
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
	res, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE storage = ? AND id = ?`,
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
func (d *Driver) SupportsCompositePrimaryKeys() bool { return false }

// SupportsPartialUpdates reports partial update support.
func (d *Driver) SupportsPartialUpdates() bool { return false }

// DB exposes the underlying sql.DB for integration testing hooks.
func (d *Driver) DB() *sql.DB { return d.db }

// Path returns the configured database path.
func (d *Driver) Path() string { return d.path }

// Close releases the underlying database handle.
func (d *Driver) Close() error { return d.db.Close() }
