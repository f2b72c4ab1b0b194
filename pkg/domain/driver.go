package domain

import "context"

// Driver is the storage backend contract consumed by the persistence core.
// The key passed to each call is the serialized identifier produced by the
// identifier converter: a scalar for single-field identifiers, a
// map[string]any for composite ones.
//
// Drivers signal not-found through the boolean return of Find; all other
// failures surface as driver-defined errors which the core propagates
// verbatim without wrapping, retrying, or interpreting.
type Driver interface {
	// Find fetches the record stored under the key. The boolean reports
	// whether a record exists.
	Find(ctx context.Context, storageName string, key any) (Record, bool, error)
	// Insert stores a new record under the key.
	Insert(ctx context.Context, storageName string, key any, data Record) error
	// Update applies a change set to an existing record. Drivers reporting
	// SupportsPartialUpdates receive only the changed fields; all others
	// receive the full merged record.
	Update(ctx context.Context, storageName string, key any, changes Record) error
	// Delete removes the record stored under the key.
	Delete(ctx context.Context, storageName string, key any) error

	// SupportsCompositePrimaryKeys reports whether multi-field identifiers
	// can be used with this driver. Read once per unit of work.
	SupportsCompositePrimaryKeys() bool
	// SupportsPartialUpdates reports whether Update accepts partial change
	// sets. Read once per unit of work.
	SupportsPartialUpdates() bool
}
