package core

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/methodin/KeyValueStore/internal/infra/storage/memory"
	"github.com/methodin/KeyValueStore/pkg/domain"
)

func TestManagerLifecycleAgainstMemoryDriver(t *testing.T) {
	driver := memory.NewDriver()
	manager := NewManager(driver, testRegistry())
	ctx := context.Background()

	post := domain.NewEntity("Post")
	post.Set("id", 1)
	post.Set("title", "first")
	if err := manager.Persist(ctx, post); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := manager.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// a fresh manager reads back what the first one wrote
	reader := NewManager(driver, testRegistry())
	loaded, err := reader.Find(ctx, "Post", 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if title, _ := loaded.Get("title"); title != "first" {
		t.Fatalf("title = %v", title)
	}

	loaded.Set("title", "second")
	if err := reader.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := reader.Remove(ctx, loaded); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := reader.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if _, err := NewManager(driver, testRegistry()).Find(ctx, "Post", 1); err == nil {
		t.Fatal("expected not found after removal")
	}
}

func TestManagerScopeIsUniquePerManager(t *testing.T) {
	driver := memory.NewDriver()
	a := NewManager(driver, testRegistry())
	b := NewManager(driver, testRegistry())
	if a.Scope() == "" || a.Scope() == b.Scope() {
		t.Fatalf("expected distinct non-empty scopes, got %q and %q", a.Scope(), b.Scope())
	}
}

func TestManagerObservesOperations(t *testing.T) {
	driver := memory.NewDriver()
	rec := NewExpvarMetricsRecorder("")
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	manager := NewManager(driver, testRegistry(),
		WithMetricsRecorder(rec),
		WithTracer(tracer),
	)
	ctx := context.Background()

	post := domain.NewEntity("Post")
	post.Set("id", 1)
	if err := manager.Persist(ctx, post); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := manager.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := manager.Find(ctx, "Post", 404); err == nil {
		t.Fatal("expected not found")
	}

	snap := rec.Snapshot()
	if snap.Results["persist"]["success"] != 1 {
		t.Fatalf("persist successes = %d", snap.Results["persist"]["success"])
	}
	if snap.Results["flush"]["success"] != 1 {
		t.Fatalf("flush successes = %d", snap.Results["flush"]["success"])
	}
	if snap.Results["find"]["error"] != 1 {
		t.Fatalf("find errors = %d", snap.Results["find"]["error"])
	}

	entries := tracer.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Scope != manager.Scope() {
			t.Fatalf("span scope = %q, want %q", entry.Scope, manager.Scope())
		}
	}
	if entries[2].Status != "error" || entries[2].Operation != "find" {
		t.Fatalf("unexpected final span %+v", entries[2])
	}
	if buf.Len() == 0 {
		t.Fatal("spans should be encoded to the writer")
	}
}

func TestManagerClearDetaches(t *testing.T) {
	driver := memory.NewDriver()
	manager := NewManager(driver, testRegistry())
	ctx := context.Background()

	post := domain.NewEntity("Post")
	post.Set("id", 1)
	if err := manager.Persist(ctx, post); err != nil {
		t.Fatalf("persist: %v", err)
	}
	manager.Clear()
	if err := manager.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if driver.Len("posts") != 0 {
		t.Fatalf("expected empty storage after clear, got %d records", driver.Len("posts"))
	}
}

func TestManagerFindPropagatesErrorTaxonomy(t *testing.T) {
	manager := NewManager(memory.NewDriver(), testRegistry())
	_, err := manager.Find(context.Background(), "Post", 12)
	var notFound NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
