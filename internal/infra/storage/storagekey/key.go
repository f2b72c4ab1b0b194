// Package storagekey canonicalizes serialized identifiers into stable string
// keys for backends that address records by a single opaque key.
package storagekey

import (
	"fmt"
	"sort"
	"strings"
)

// Canonical renders a serialized identifier as a deterministic string.
// Composite identifiers (maps) are rendered in sorted field order so the same
// identifier always produces the same key regardless of map iteration order.
func Canonical(key any) string {
	switch k := key.(type) {
	case map[string]any:
		fields := make([]string, 0, len(k))
		for field := range k {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		var b strings.Builder
		for i, field := range fields {
			if i > 0 {
				b.WriteByte(0x1e)
			}
			b.WriteString(field)
			b.WriteByte(0x1f)
			fmt.Fprintf(&b, "%v", k[field])
		}
		return b.String()
	default:
		return fmt.Sprintf("%v", key)
	}
}
