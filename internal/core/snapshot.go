package core

// snapshotEngine produces a deterministic flat field→value mapping of an
// instance's current state, used both for change detection and as the payload
// handed to storage drivers. Snapshots are side-effect free: they never
// register instances or touch tracking state.
type snapshotEngine struct {
	registry Registry
}

// Snapshot captures the instance's declared non-identifier fields, recursing
// into embedded associations. A nil embedded instance snapshots to an empty
// mapping rather than nil so that diff comparisons stay total. Ad-hoc
// attributes outside the declared schema are folded in afterwards without
// overwriting declared values.
func (s snapshotEngine) Snapshot(meta *Metadata, e *Entity) (Record, error) {
	out := Record{}
	for _, f := range meta.Fields {
		if f.Kind == FieldTransient || meta.IsIdentifier(f.Name) {
			continue
		}
		if f.Kind == FieldEmbedded {
			nested, err := s.snapshotEmbedded(f, e)
			if err != nil {
				return nil, err
			}
			out[f.Name] = nested
			continue
		}
		if v, ok := e.Get(f.Name); ok {
			out[f.Name] = v
		}
	}
	for name, v := range e.Attributes() {
		if _, taken := out[name]; taken {
			continue
		}
		if meta.IsIdentifier(name) {
			continue
		}
		out[name] = v
	}
	return out, nil
}

func (s snapshotEngine) snapshotEmbedded(f Field, e *Entity) (map[string]any, error) {
	v, ok := e.Get(f.Name)
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	embedded, ok := v.(*Entity)
	if !ok || embedded == nil {
		return map[string]any{}, nil
	}
	target, err := s.registry.Lookup(f.Target)
	if err != nil {
		return nil, err
	}
	nested, err := s.Snapshot(target, embedded)
	if err != nil {
		return nil, err
	}
	return map[string]any(nested), nil
}
