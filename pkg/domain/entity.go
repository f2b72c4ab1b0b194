package domain

import "sync/atomic"

var handleSeq uint64

// Entity is an in-memory instance of a mapped type. Field values live in a
// generic field table; attributes set outside the declared schema are kept in
// a separate side-mapping so snapshots can fold them in without clobbering
// declared values.
//
// An Entity is owned by the application until it is registered with a unit of
// work; after registration it is co-owned by the identity map and the unit of
// work's tracking tables, keyed by its opaque handle.
type Entity struct {
	typeName string
	fields   map[string]any
	extra    map[string]any
	handle   uint64
}

// NewEntity constructs a blank instance of the named mapped type.
func NewEntity(typeName string) *Entity {
	return &Entity{
		typeName: typeName,
		fields:   make(map[string]any),
		extra:    make(map[string]any),
	}
}

// Type returns the mapped type name the instance belongs to.
func (e *Entity) Type() string { return e.typeName }

// Get reads a declared field value. The second return reports whether the
// field has ever been assigned.
func (e *Entity) Get(field string) (any, bool) {
	v, ok := e.fields[field]
	return v, ok
}

// Set assigns a declared field value.
func (e *Entity) Set(field string, value any) {
	e.fields[field] = value
}

// Unset removes a declared field value.
func (e *Entity) Unset(field string) {
	delete(e.fields, field)
}

// Attribute reads an ad-hoc attribute outside the declared schema.
func (e *Entity) Attribute(name string) (any, bool) {
	v, ok := e.extra[name]
	return v, ok
}

// SetAttribute assigns an ad-hoc attribute outside the declared schema.
// Attributes are persisted alongside declared fields but never shadow them.
func (e *Entity) SetAttribute(name string, value any) {
	e.extra[name] = value
}

// Attributes returns a copy of the ad-hoc attribute mapping.
func (e *Entity) Attributes() map[string]any {
	out := make(map[string]any, len(e.extra))
	for k, v := range e.extra {
		out[k] = v
	}
	return out
}

// Handle returns the instance's opaque identity handle, assigning one from a
// process-wide sequence on first use. Handles are never reused, so tracking
// tables keyed by handle cannot confuse instances across unit-of-work scopes.
func (e *Entity) Handle() uint64 {
	if e.handle == 0 {
		e.handle = atomic.AddUint64(&handleSeq, 1)
	}
	return e.handle
}
