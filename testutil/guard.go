// Package testutil provides reusable testing helpers for enforcing
// architectural and API boundary invariants across the repository.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoDirectImports scans all non-test .go files in dir (typically "."
// from within the package) and fails if any import path satisfies the
// forbidden predicate. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden imports (%s): %s", reason, strings.Join(viols, ", "))
	}
}

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// ThirdPartyImportForbidden matches any import path that resolves outside the
// standard library (contains a dot in its first path element).
func ThirdPartyImportForbidden(path string) bool {
	first := path
	if i := strings.Index(path, "/"); i >= 0 {
		first = path[:i]
	}
	return strings.Contains(first, ".")
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var viols []string
	fset := token.NewFileSet()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if forbidden(path) {
				viols = append(viols, name+" imports "+path)
			}
		}
	}
	return viols, nil
}
