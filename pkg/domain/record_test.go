package domain

import (
	"reflect"
	"testing"
)

func TestRecordCloneIsDeep(t *testing.T) {
	original := Record{
		"title":  "a",
		"author": map[string]any{"name": "Ada"},
		"tags":   []any{"x", map[string]any{"y": 1}},
	}
	clone := original.Clone()
	clone["title"] = "b"
	clone["author"].(map[string]any)["name"] = "Eve"
	clone["tags"].([]any)[1].(map[string]any)["y"] = 2

	if original["title"] != "a" {
		t.Fatalf("title mutated: %v", original["title"])
	}
	if original["author"].(map[string]any)["name"] != "Ada" {
		t.Fatal("nested map aliased")
	}
	if original["tags"].([]any)[1].(map[string]any)["y"] != 1 {
		t.Fatal("nested slice element aliased")
	}
}

func TestRecordCloneNormalizesNestedRecords(t *testing.T) {
	r := Record{"nested": Record{"a": 1}}
	clone := r.Clone()
	if _, ok := clone["nested"].(map[string]any); !ok {
		t.Fatalf("nested value = %T, want map[string]any", clone["nested"])
	}
}

func TestRecordCloneNil(t *testing.T) {
	var r Record
	if r.Clone() != nil {
		t.Fatal("nil record must clone to nil")
	}
}

func TestRecordMerge(t *testing.T) {
	base := Record{"a": 1, "b": 2}
	merged := base.Merge(Record{"b": 3, "c": 4})
	want := Record{"a": 1, "b": 3, "c": 4}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("merged = %v, want %v", merged, want)
	}
	if base["b"] != 2 || len(base) != 2 {
		t.Fatalf("merge mutated receiver: %v", base)
	}
}

func TestRecordMergeOntoNil(t *testing.T) {
	var base Record
	merged := base.Merge(Record{"a": 1})
	if !reflect.DeepEqual(merged, Record{"a": 1}) {
		t.Fatalf("merged = %v", merged)
	}
}

func TestEntityFieldsAndAttributesAreSeparate(t *testing.T) {
	e := NewEntity("Post")
	e.Set("title", "a")
	e.SetAttribute("title", "shadow")

	if v, ok := e.Get("title"); !ok || v != "a" {
		t.Fatalf("field = %v (%v)", v, ok)
	}
	if v, ok := e.Attribute("title"); !ok || v != "shadow" {
		t.Fatalf("attribute = %v (%v)", v, ok)
	}

	e.Unset("title")
	if _, ok := e.Get("title"); ok {
		t.Fatal("field should be unset")
	}
	if _, ok := e.Attribute("title"); !ok {
		t.Fatal("attribute must survive field unset")
	}
}

func TestEntityAttributesReturnsCopy(t *testing.T) {
	e := NewEntity("Post")
	e.SetAttribute("a", 1)
	attrs := e.Attributes()
	attrs["a"] = 9
	if v, _ := e.Attribute("a"); v != 1 {
		t.Fatal("attributes copy aliased entity state")
	}
}

func TestEntityHandlesAreStableAndUnique(t *testing.T) {
	a := NewEntity("Post")
	b := NewEntity("Post")
	if a.Handle() != a.Handle() {
		t.Fatal("handle must be stable per instance")
	}
	if a.Handle() == b.Handle() {
		t.Fatal("handles must be unique across instances")
	}
}

func TestMetadataHelpers(t *testing.T) {
	meta := &Metadata{
		Type:       "Vote",
		Identifier: []string{"poll", "voter"},
		Fields:     []Field{{Name: "choice"}, {Name: "cast", Kind: FieldTransient}},
	}
	if !meta.IsComposite() {
		t.Fatal("two identifier fields make a composite type")
	}
	if !meta.IsIdentifier("poll") || meta.IsIdentifier("choice") {
		t.Fatal("identifier membership wrong")
	}
	if f, ok := meta.Field("cast"); !ok || f.Kind != FieldTransient {
		t.Fatalf("field lookup = %+v (%v)", f, ok)
	}
	if _, ok := meta.Field("missing"); ok {
		t.Fatal("unknown field must not resolve")
	}
	if e := meta.NewInstance(); e.Type() != "Vote" {
		t.Fatalf("new instance type = %q", e.Type())
	}
}

func TestMapRegistry(t *testing.T) {
	registry := MapRegistry{}
	meta := &Metadata{Type: "Post", Identifier: []string{"id"}}
	registry.Register(meta)

	got, err := registry.Lookup("Post")
	if err != nil || got != meta {
		t.Fatalf("lookup = %v, %v", got, err)
	}
	if _, err := registry.Lookup("Nope"); err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NotFoundError{Type: "Post", Key: "7"}, `Post "7" not found in storage`},
		{MissingIdentifierError{Type: "Post"}, "Post instance has no identifier assigned"},
		{DuplicateIdentifierError{Type: "Post", Key: "7"}, `Post "7" is already registered`},
		{NotManagedError{Type: "Post"}, "Post instance is not managed by this unit of work"},
		{InvalidIdentifierError{Type: "Post", Field: "id"}, `identifier field "id" of Post is missing`},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("message = %q, want %q", got, tc.want)
		}
	}
}
