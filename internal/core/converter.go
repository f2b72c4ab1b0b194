package core

// identifierConverter translates identifier values between the in-memory
// normalized form and the storage driver's wire representation. Serialize and
// Unserialize are inverses for any identifier value a driver legally accepts.
type identifierConverter struct{}

// Serialize produces the wire form of a normalized identifier: the bare value
// for single-field identifiers, a field→value mapping for composite ones.
func (identifierConverter) Serialize(meta *Metadata, id map[string]any) (any, error) {
	if len(meta.Identifier) == 0 {
		return nil, InvalidIdentifierError{Type: meta.Type, Field: ""}
	}
	if !meta.IsComposite() {
		field := meta.Identifier[0]
		v, ok := id[field]
		if !ok || v == nil {
			return nil, InvalidIdentifierError{Type: meta.Type, Field: field}
		}
		return v, nil
	}
	out := make(map[string]any, len(meta.Identifier))
	for _, field := range meta.Identifier {
		v, ok := id[field]
		if !ok || v == nil {
			return nil, InvalidIdentifierError{Type: meta.Type, Field: field}
		}
		out[field] = v
	}
	return out, nil
}

// Unserialize returns the cleaned field payload of a raw record fetched from
// storage: a clone of the record with identifier fields stripped. The caller's
// record is never mutated. Hydration assigns identifier values from the
// normalized identifier, not from the payload.
func (identifierConverter) Unserialize(meta *Metadata, raw Record) Record {
	if raw == nil {
		return Record{}
	}
	out := raw.Clone()
	for _, field := range meta.Identifier {
		delete(out, field)
	}
	return out
}
