package core

import (
	"fmt"
	"strings"
)

// identifierHandler abstracts over single-field and composite identifiers so
// the rest of the core is identifier-shape-agnostic. The variant is selected
// once per unit of work from the driver's composite-key capability flag and
// never changes afterwards.
type identifierHandler interface {
	// Normalize constrains a raw key to the identifier fields declared in
	// metadata. The raw key may be a scalar (single-field identifiers only)
	// or a field→value mapping.
	Normalize(meta *Metadata, key any) (map[string]any, error)
	// FromEntity reads the identifier fields directly off a live instance.
	// It returns nil when the instance has no identity assigned yet.
	FromEntity(meta *Metadata, e *Entity) (map[string]any, error)
	// Hash derives a deterministic lookup key from a normalized identifier.
	// Composite identifiers hash order-dependently over the declared field
	// order.
	Hash(meta *Metadata, id map[string]any) string
}

func newIdentifierHandler(supportsComposite bool) identifierHandler {
	if supportsComposite {
		return compositeIdentifierHandler{}
	}
	return singleIdentifierHandler{}
}

// singleIdentifierHandler serves drivers without composite key support. It
// rejects metadata declaring more than one identifier field.
type singleIdentifierHandler struct{}

func (singleIdentifierHandler) requireSingle(meta *Metadata) error {
	if meta.IsComposite() {
		return fmt.Errorf("type %q declares a composite identifier but the storage driver does not support composite primary keys", meta.Type)
	}
	if len(meta.Identifier) == 0 {
		return fmt.Errorf("type %q declares no identifier fields", meta.Type)
	}
	return nil
}

func (h singleIdentifierHandler) Normalize(meta *Metadata, key any) (map[string]any, error) {
	if err := h.requireSingle(meta); err != nil {
		return nil, err
	}
	field := meta.Identifier[0]
	switch k := key.(type) {
	case nil:
		return nil, InvalidIdentifierError{Type: meta.Type, Field: field}
	case map[string]any:
		v, ok := k[field]
		if !ok || v == nil {
			return nil, InvalidIdentifierError{Type: meta.Type, Field: field}
		}
		return map[string]any{field: v}, nil
	case Record:
		return h.Normalize(meta, map[string]any(k))
	default:
		return map[string]any{field: key}, nil
	}
}

func (h singleIdentifierHandler) FromEntity(meta *Metadata, e *Entity) (map[string]any, error) {
	if err := h.requireSingle(meta); err != nil {
		return nil, err
	}
	field := meta.Identifier[0]
	v, ok := e.Get(field)
	if !ok || v == nil {
		return nil, nil
	}
	return map[string]any{field: v}, nil
}

func (singleIdentifierHandler) Hash(meta *Metadata, id map[string]any) string {
	return hashFields(meta.Identifier, id)
}

// compositeIdentifierHandler serves drivers with composite key support. It
// also handles single-field identifiers uniformly.
type compositeIdentifierHandler struct{}

func (compositeIdentifierHandler) Normalize(meta *Metadata, key any) (map[string]any, error) {
	if len(meta.Identifier) == 0 {
		return nil, fmt.Errorf("type %q declares no identifier fields", meta.Type)
	}
	var raw map[string]any
	switch k := key.(type) {
	case nil:
		return nil, InvalidIdentifierError{Type: meta.Type, Field: meta.Identifier[0]}
	case map[string]any:
		raw = k
	case Record:
		raw = map[string]any(k)
	default:
		if meta.IsComposite() {
			return nil, InvalidIdentifierError{Type: meta.Type, Field: meta.Identifier[1]}
		}
		raw = map[string]any{meta.Identifier[0]: key}
	}
	id := make(map[string]any, len(meta.Identifier))
	for _, field := range meta.Identifier {
		v, ok := raw[field]
		if !ok || v == nil {
			return nil, InvalidIdentifierError{Type: meta.Type, Field: field}
		}
		id[field] = v
	}
	return id, nil
}

func (compositeIdentifierHandler) FromEntity(meta *Metadata, e *Entity) (map[string]any, error) {
	if len(meta.Identifier) == 0 {
		return nil, fmt.Errorf("type %q declares no identifier fields", meta.Type)
	}
	id := make(map[string]any, len(meta.Identifier))
	for _, field := range meta.Identifier {
		v, ok := e.Get(field)
		if !ok || v == nil {
			return nil, nil
		}
		id[field] = v
	}
	return id, nil
}

func (compositeIdentifierHandler) Hash(meta *Metadata, id map[string]any) string {
	return hashFields(meta.Identifier, id)
}

// hashFields walks the declared field order so that equal identifiers always
// hash identically and a different declared order yields a different hash.
// Values are rendered with their dynamic type so type-distinct identifiers
// (1 vs "1") cannot collide in the identity map.
func hashFields(order []string, id map[string]any) string {
	var b strings.Builder
	for _, field := range order {
		v := id[field]
		b.WriteString(field)
		b.WriteByte(0x1f)
		fmt.Fprintf(&b, "%T:%v", v, v)
		b.WriteByte(0x1e)
	}
	return b.String()
}
