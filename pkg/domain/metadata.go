package domain

import "fmt"

// FieldKind classifies how a declared field participates in persistence.
type FieldKind int

const (
	// FieldPlain is a scalar or list value stored inline.
	FieldPlain FieldKind = iota
	// FieldEmbedded is a nested object persisted inline within its owner's
	// record; the embedded instance has no independent identity.
	FieldEmbedded
	// FieldTransient is excluded from persistence entirely.
	FieldTransient
)

// Field describes a single declared field of a mapped type.
type Field struct {
	Name string
	Kind FieldKind
	// Target names the mapped type of an embedded association. Empty for
	// plain and transient fields.
	Target string
}

// Metadata is the read-only per-type descriptor consumed by the persistence
// core: where records live, which fields identify them, and how each declared
// field is treated.
type Metadata struct {
	// Type is the mapped type name.
	Type string
	// StorageName is the backend table, collection, or prefix records of
	// this type are stored under.
	StorageName string
	// Identifier lists the identifier field names in declared order. The
	// order is significant for composite identifier hashing.
	Identifier []string
	// Fields lists the declared non-identifier field descriptors.
	Fields []Field
	// New optionally overrides instance construction. When nil, a blank
	// Entity of the mapped type is created.
	New func() *Entity
}

// NewInstance constructs a blank instance of the described type.
func (m *Metadata) NewInstance() *Entity {
	if m.New != nil {
		return m.New()
	}
	return NewEntity(m.Type)
}

// Field returns the descriptor for the named declared field.
func (m *Metadata) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsIdentifier reports whether the named field is part of the identifier.
func (m *Metadata) IsIdentifier(name string) bool {
	for _, f := range m.Identifier {
		if f == name {
			return true
		}
	}
	return false
}

// IsComposite reports whether the type declares more than one identifier field.
func (m *Metadata) IsComposite() bool { return len(m.Identifier) > 1 }

// Registry resolves mapped type names to their metadata descriptors.
type Registry interface {
	Lookup(typeName string) (*Metadata, error)
}

// MapRegistry is a simple in-memory Registry keyed by type name.
type MapRegistry map[string]*Metadata

// Register adds a metadata descriptor to the registry.
func (r MapRegistry) Register(m *Metadata) {
	r[m.Type] = m
}

// Lookup implements Registry.
func (r MapRegistry) Lookup(typeName string) (*Metadata, error) {
	m, ok := r[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown mapped type %q", typeName)
	}
	return m, nil
}
