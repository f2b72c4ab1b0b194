// Package memory provides an in-memory storage driver used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/methodin/KeyValueStore/internal/infra/storage/storagekey"
	"github.com/methodin/KeyValueStore/pkg/domain"
)

// Compile-time contract assertion ensuring the driver satisfies the domain interface.
var _ domain.Driver = (*Driver)(nil)

// Driver stores records in nested maps keyed by storage name and canonical
// key. All records are cloned on the way in and out so callers can never
// mutate driver state through shared references.
type Driver struct {
	mu     sync.RWMutex
	tables map[string]map[string]domain.Record
}

// NewDriver constructs an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{tables: make(map[string]map[string]domain.Record)}
}

// Find fetches a record by key.
func (d *Driver) Find(_ context.Context, storageName string, key any) (domain.Record, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.tables[storageName][storagekey.Canonical(key)]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// Insert stores a new record; inserting over an existing key fails.
func (d *Driver) Insert(_ context.Context, storageName string, key any, data domain.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	table, ok := d.tables[storageName]
	if !ok {
		table = make(map[string]domain.Record)
		d.tables[storageName] = table
	}
	ck := storagekey.Canonical(key)
	if _, exists := table[ck]; exists {
		return fmt.Errorf("record %q already exists in %q", ck, storageName)
	}
	table[ck] = data.Clone()
	return nil
}

// Update merges a partial change set into an existing record.
func (d *Driver) Update(_ context.Context, storageName string, key any, changes domain.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ck := storagekey.Canonical(key)
	current, ok := d.tables[storageName][ck]
	if !ok {
		return fmt.Errorf("record %q not found in %q", ck, storageName)
	}
	d.tables[storageName][ck] = current.Merge(changes)
	return nil
}

// Delete removes a record by key.
func (d *Driver) Delete(_ context.Context, storageName string, key any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ck := storagekey.Canonical(key)
	if _, ok := d.tables[storageName][ck]; !ok {
		return fmt.Errorf("record %q not found in %q", ck, storageName)
	}
	delete(d.tables[storageName], ck)
	return nil
}

// SupportsCompositePrimaryKeys reports composite key support.
func (d *Driver) SupportsCompositePrimaryKeys() bool { return true }

// SupportsPartialUpdates reports partial update support.
func (d *Driver) SupportsPartialUpdates() bool { return true }

// Len reports the number of records stored under a storage name.
func (d *Driver) Len(storageName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tables[storageName])
}
