package core

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// UnitOfWork coordinates object persistence against a single storage driver:
// it owns the identity map, tracks original data for change detection, and
// applies pending work in one commit pass ordered updates, insertions,
// deletions.
//
// A UnitOfWork is request-scoped and not safe for concurrent use; callers
// needing shared access must serialize Commit, ScheduleForInsert and
// ScheduleForDelete externally or shard instances per logical session.
type UnitOfWork struct {
	driver    Driver
	registry  Registry
	handler   identifierHandler
	converter identifierConverter
	snapshots snapshotEngine

	// capability flags captured once at construction, immutable afterwards
	supportsPartialUpdates bool

	// identityMap maps type name → identifier hash → live instance.
	identityMap map[string]map[string]*Entity
	// identifiers maps instance handle → normalized identifier. Presence in
	// this table is what makes an instance "managed".
	identifiers map[uint64]map[string]any
	// originalData maps instance handle → last-known-persisted snapshot.
	originalData map[uint64]Record

	scheduledInsertions map[uint64]*Entity
	scheduledDeletions  map[uint64]*Entity
}

// NewUnitOfWork constructs a unit of work over the given driver and metadata
// registry. The driver's capability flags are read here, once, and assumed
// stable for the unit of work's lifetime.
func NewUnitOfWork(driver Driver, registry Registry) *UnitOfWork {
	return &UnitOfWork{
		driver:                 driver,
		registry:               registry,
		handler:                newIdentifierHandler(driver.SupportsCompositePrimaryKeys()),
		snapshots:              snapshotEngine{registry: registry},
		supportsPartialUpdates: driver.SupportsPartialUpdates(),
		identityMap:            make(map[string]map[string]*Entity),
		identifiers:            make(map[uint64]map[string]any),
		originalData:           make(map[uint64]Record),
		scheduledInsertions:    make(map[uint64]*Entity),
		scheduledDeletions:     make(map[uint64]*Entity),
	}
}

// Reconstitute loads the instance identified by the raw key from storage.
// When an instance for that identity is already registered, the registered
// instance is returned rather than a duplicate hydration.
func (u *UnitOfWork) Reconstitute(ctx context.Context, typeName string, key any) (*Entity, error) {
	meta, err := u.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	id, err := u.handler.Normalize(meta, key)
	if err != nil {
		return nil, err
	}
	wireKey, err := u.converter.Serialize(meta, id)
	if err != nil {
		return nil, err
	}
	data, found, err := u.driver.Find(ctx, meta.StorageName, wireKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, NotFoundError{Type: typeName, Key: fmt.Sprintf("%v", wireKey)}
	}
	return u.CreateEntity(meta, id, data)
}

// CreateEntity hydrates a managed instance from a raw storage record. The
// operation is idempotent per identity: if an instance is already registered
// for the key, it is returned unchanged and the record is ignored.
func (u *UnitOfWork) CreateEntity(meta *Metadata, key any, data Record) (*Entity, error) {
	id, err := u.handler.Normalize(meta, key)
	if err != nil {
		return nil, err
	}
	hash := u.handler.Hash(meta, id)
	if e, ok := u.identityMap[meta.Type][hash]; ok {
		return e, nil
	}

	e := meta.NewInstance()
	if err := u.hydrate(meta, e, u.converter.Unserialize(meta, data)); err != nil {
		return nil, err
	}
	for field, v := range id {
		e.Set(field, v)
	}

	handle := e.Handle()
	// pre-conversion payload, so later diffs run against what the driver saw
	u.originalData[handle] = data.Clone()
	u.identifiers[handle] = id
	u.register(meta.Type, hash, e)
	return e, nil
}

// CreateEmbeddedEntity hydrates an instance that lives inline within another
// record. Embedded instances have no independent identity: they are never
// registered in the identity map or the identifier table.
func (u *UnitOfWork) CreateEmbeddedEntity(meta *Metadata, data Record) (*Entity, error) {
	e := meta.NewInstance()
	if err := u.hydrate(meta, e, u.converter.Unserialize(meta, data)); err != nil {
		return nil, err
	}
	return e, nil
}

// hydrate assigns declared fields from a cleaned payload, recursing into
// embedded associations, and files undeclared keys as ad-hoc attributes.
func (u *UnitOfWork) hydrate(meta *Metadata, e *Entity, payload Record) error {
	declared := make(map[string]struct{}, len(meta.Fields)+len(meta.Identifier))
	for _, field := range meta.Identifier {
		declared[field] = struct{}{}
	}
	for _, f := range meta.Fields {
		declared[f.Name] = struct{}{}
		if f.Kind == FieldTransient {
			continue
		}
		v, ok := payload[f.Name]
		if !ok {
			continue
		}
		if f.Kind == FieldEmbedded {
			nested, ok := v.(map[string]any)
			if !ok {
				continue
			}
			target, err := u.registry.Lookup(f.Target)
			if err != nil {
				return err
			}
			embedded, err := u.CreateEmbeddedEntity(target, Record(nested))
			if err != nil {
				return err
			}
			e.Set(f.Name, embedded)
			continue
		}
		e.Set(f.Name, v)
	}
	for k, v := range payload {
		if _, ok := declared[k]; ok {
			continue
		}
		e.SetAttribute(k, v)
	}
	return nil
}

// ScheduleForInsert registers a new instance for insertion at the next
// commit. Already-managed instances are left alone. The instance must carry
// its identifier values; identity is claimed in the identity map immediately
// so duplicate scheduling fails fast, but original data is recorded only
// after the physical insert.
func (u *UnitOfWork) ScheduleForInsert(e *Entity) error {
	handle := e.Handle()
	if _, managed := u.identifiers[handle]; managed {
		return nil
	}
	meta, err := u.registry.Lookup(e.Type())
	if err != nil {
		return err
	}
	id, err := u.handler.FromEntity(meta, e)
	if err != nil {
		return err
	}
	if id == nil {
		return MissingIdentifierError{Type: meta.Type}
	}
	hash := u.handler.Hash(meta, id)
	if _, taken := u.identityMap[meta.Type][hash]; taken {
		return DuplicateIdentifierError{Type: meta.Type, Key: hash}
	}
	u.register(meta.Type, hash, e)
	u.scheduledInsertions[handle] = e
	return nil
}

// ScheduleForDelete registers a managed instance for deletion at the next
// commit.
func (u *UnitOfWork) ScheduleForDelete(e *Entity) error {
	handle := e.Handle()
	if _, managed := u.identifiers[handle]; !managed {
		return NotManagedError{Type: e.Type()}
	}
	u.scheduledDeletions[handle] = e
	return nil
}

// Commit applies all pending work against the storage driver in strict order:
// updates, then insertions, then deletions. A driver failure aborts the
// remainder of the commit; already-applied calls stand (no rollback is
// attempted) and unapplied work stays scheduled.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if err := u.commitUpdates(ctx); err != nil {
		return err
	}
	if err := u.commitInsertions(ctx); err != nil {
		return err
	}
	if err := u.commitDeletions(ctx); err != nil {
		return err
	}
	u.scheduledInsertions = make(map[uint64]*Entity)
	u.scheduledDeletions = make(map[uint64]*Entity)
	return nil
}

// commitUpdates recomputes the change set of every identity-map entry that is
// not pending insertion and writes non-empty deltas to the driver.
func (u *UnitOfWork) commitUpdates(ctx context.Context) error {
	for _, typeName := range sortedKeys(u.identityMap) {
		meta, err := u.registry.Lookup(typeName)
		if err != nil {
			return err
		}
		instances := u.identityMap[typeName]
		for _, hash := range sortedKeys(instances) {
			e := instances[hash]
			handle := e.Handle()
			if _, pending := u.scheduledInsertions[handle]; pending {
				continue
			}
			snapshot, err := u.snapshots.Snapshot(meta, e)
			if err != nil {
				return err
			}
			changes := changeSet(meta, snapshot, u.originalData[handle])
			if len(changes) == 0 {
				continue
			}
			wireKey, err := u.converter.Serialize(meta, u.identifiers[handle])
			if err != nil {
				return err
			}
			if u.supportsPartialUpdates {
				if err := u.driver.Update(ctx, meta.StorageName, wireKey, changes); err != nil {
					return err
				}
				u.originalData[handle] = u.originalData[handle].Merge(changes)
				continue
			}
			// whole-record backends get the original merged with the delta
			full := u.originalData[handle].Merge(changes)
			if err := u.driver.Update(ctx, meta.StorageName, wireKey, full); err != nil {
				return err
			}
			u.originalData[handle] = full
		}
	}
	return nil
}

// commitInsertions writes every pending insertion. Each instance leaves the
// pending set exactly when its insert succeeds.
func (u *UnitOfWork) commitInsertions(ctx context.Context) error {
	for _, handle := range sortedKeys(u.scheduledInsertions) {
		e := u.scheduledInsertions[handle]
		meta, err := u.registry.Lookup(e.Type())
		if err != nil {
			return err
		}
		id, err := u.handler.FromEntity(meta, e)
		if err != nil {
			return err
		}
		if id == nil {
			return MissingIdentifierError{Type: meta.Type}
		}
		wireKey, err := u.converter.Serialize(meta, id)
		if err != nil {
			return err
		}
		snapshot, err := u.snapshots.Snapshot(meta, e)
		if err != nil {
			return err
		}
		if err := u.driver.Insert(ctx, meta.StorageName, wireKey, snapshot); err != nil {
			return err
		}
		u.originalData[handle] = snapshot.Clone()
		u.identifiers[handle] = id
		u.register(meta.Type, u.handler.Hash(meta, id), e)
		delete(u.scheduledInsertions, handle)
	}
	return nil
}

// commitDeletions removes every pending deletion from storage and purges the
// instance from all tracking tables exactly when its delete succeeds.
func (u *UnitOfWork) commitDeletions(ctx context.Context) error {
	for _, handle := range sortedKeys(u.scheduledDeletions) {
		e := u.scheduledDeletions[handle]
		meta, err := u.registry.Lookup(e.Type())
		if err != nil {
			return err
		}
		id := u.identifiers[handle]
		wireKey, err := u.converter.Serialize(meta, id)
		if err != nil {
			return err
		}
		if err := u.driver.Delete(ctx, meta.StorageName, wireKey); err != nil {
			return err
		}
		delete(u.identityMap[meta.Type], u.handler.Hash(meta, id))
		delete(u.identifiers, handle)
		delete(u.originalData, handle)
		delete(u.scheduledDeletions, handle)
	}
	return nil
}

// Clear detaches every tracked instance: pending sets, identifier table,
// original data and the identity map are reset. No storage calls are made.
func (u *UnitOfWork) Clear() {
	u.identityMap = make(map[string]map[string]*Entity)
	u.identifiers = make(map[uint64]map[string]any)
	u.originalData = make(map[uint64]Record)
	u.scheduledInsertions = make(map[uint64]*Entity)
	u.scheduledDeletions = make(map[uint64]*Entity)
}

// Managed reports whether the instance is currently tracked by this unit of
// work.
func (u *UnitOfWork) Managed(e *Entity) bool {
	_, ok := u.identifiers[e.Handle()]
	return ok
}

func (u *UnitOfWork) register(typeName, hash string, e *Entity) {
	byHash, ok := u.identityMap[typeName]
	if !ok {
		byHash = make(map[string]*Entity)
		u.identityMap[typeName] = byHash
	}
	byHash[hash] = e
}

// changeSet includes a field when it is newly present or its value is not
// identical to the original snapshot's value. Comparison is strict: no
// type coercion, so a quietly converted value still counts as changed.
// Declared embedded fields are an exception to "newly present": stored
// records may omit or null them, and both mean the same empty mapping the
// snapshot produces, so they diff against an empty mapping instead.
func changeSet(meta *Metadata, current, original Record) Record {
	out := Record{}
	for field, v := range current {
		orig, ok := original[field]
		if !ok || orig == nil {
			if f, declared := meta.Field(field); declared && f.Kind == FieldEmbedded {
				orig, ok = map[string]any{}, true
			}
		}
		if !ok || !reflect.DeepEqual(normalizeComparable(v), normalizeComparable(orig)) {
			out[field] = v
		}
	}
	return out
}

// normalizeComparable levels the map alias types Record and map[string]any so
// structurally equal payloads compare equal regardless of which alias a
// caller used.
func normalizeComparable(v any) any {
	switch val := v.(type) {
	case Record:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeComparable(item)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeComparable(v)
	}
	return out
}

func sortedKeys[K ~string | ~uint64, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
