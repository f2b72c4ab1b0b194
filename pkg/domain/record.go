package domain

// Record is the wire representation of a stored object: a flat field→value
// mapping handed to and returned by storage drivers. Nested mappings (embedded
// associations) are plain map[string]any values.
type Record map[string]any

// Clone returns a deep copy of the record. Nested Record values are normalized
// to map[string]any so that copies of equal payloads always compare equal.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a copy of the record with the given changes applied on top.
// Neither input is mutated.
func (r Record) Merge(changes Record) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(changes))
	}
	for k, v := range changes {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Record:
		return cloneMap(val)
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
