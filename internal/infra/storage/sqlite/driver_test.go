package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/methodin/KeyValueStore/pkg/domain"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := NewDriver(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDriverRoundTrip(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	if err := d.Insert(ctx, "posts", 1, domain.Record{"title": "a", "views": float64(3)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, found, err := d.Find(ctx, "posts", 1)
	if err != nil || !found {
		t.Fatalf("find: %v found=%v", err, found)
	}
	want := domain.Record{"title": "a", "views": float64(3)}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("record = %v, want %v", rec, want)
	}

	// whole-record update replaces the payload
	if err := d.Update(ctx, "posts", 1, domain.Record{"title": "b"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _, _ = d.Find(ctx, "posts", 1)
	if !reflect.DeepEqual(rec, domain.Record{"title": "b"}) {
		t.Fatalf("record = %v, want replaced payload", rec)
	}

	if err := d.Delete(ctx, "posts", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := d.Find(ctx, "posts", 1); found {
		t.Fatal("record should be gone")
	}
}

func TestDriverDuplicateInsert(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	if err := d.Insert(ctx, "posts", 1, domain.Record{}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := d.Insert(ctx, "posts", 1, domain.Record{}); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestDriverMissingRecordErrors(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	if err := d.Update(ctx, "posts", 404, domain.Record{"a": float64(1)}); err == nil {
		t.Fatal("expected update-missing error")
	}
	if err := d.Delete(ctx, "posts", 404); err == nil {
		t.Fatal("expected delete-missing error")
	}
}

func TestDriverStorageNamesAreIsolated(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	if err := d.Insert(ctx, "posts", 1, domain.Record{"title": "a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, found, _ := d.Find(ctx, "authors", 1); found {
		t.Fatal("storage names must not share records")
	}
}

func TestDriverCapabilities(t *testing.T) {
	d := newTestDriver(t)
	if d.SupportsCompositePrimaryKeys() || d.SupportsPartialUpdates() {
		t.Fatal("sqlite driver is single-key and whole-record")
	}
}

func TestDriverDefaultPath(t *testing.T) {
	// exercised indirectly: empty path falls back to a local file. Use a
	// temp working path instead to keep the test hermetic.
	d := newTestDriver(t)
	if d.DB() == nil || d.Path() == "" {
		t.Fatal("driver accessors must expose the open handle and path")
	}
}
