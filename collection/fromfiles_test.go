package collection

import (
	"testing"

	"lumendb/schema"
)

// Scenario 5 from spec.md §8: replay tolerance.
func TestFromFiles_ReplayTolerance(t *testing.T) {
	base := t.TempDir()
	s, err := schema.New(map[string]schema.FieldDefinition{
		"name":   schema.NewFieldDefinition(schema.StringType()),
		"salary": schema.NewFieldDefinition(schema.NullableType(schema.IntType())),
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}

	c, err := New("employees", s, base, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := c.AddDocument(docFields(map[string]any{"name": "Bob"}))
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if _, err := c.UpdateDocument(id, docFields(map[string]any{"name": "Bob Smith"})); err != nil {
		t.Fatalf("UpdateDocument 1: %v", err)
	}
	if _, err := c.UpdateDocument(id, docFields(map[string]any{"salary": int64(65000)})); err != nil {
		t.Fatalf("UpdateDocument 2: %v", err)
	}
	lastOffset := c.DocumentIndices()[id]

	reloaded, err := FromFiles(base, "employees", Options{})
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}

	indices := reloaded.DocumentIndices()
	if len(indices) != 1 {
		t.Fatalf("reloaded document_indices has %d entries, want 1", len(indices))
	}
	offset, ok := indices[id]
	if !ok {
		t.Fatalf("reloaded document_indices missing id %v", id)
	}
	if offset != lastOffset {
		t.Fatalf("reloaded offset = %d, want %d (the third record)", offset, lastOffset)
	}

	doc, ok := reloaded.GetDocument(id)
	if !ok {
		t.Fatal("reloaded GetDocument: not found")
	}
	if v, _ := doc.Get("name"); v != "Bob Smith" {
		t.Fatalf("name = %v, want Bob Smith", v)
	}
	if v, _ := doc.Get("salary"); v != int64(65000) {
		t.Fatalf("salary = %v, want 65000", v)
	}
}

func TestFromFiles_AfterDelete(t *testing.T) {
	base := t.TempDir()
	s, _ := schema.New(map[string]schema.FieldDefinition{
		"name": schema.NewFieldDefinition(schema.StringType()),
	})
	c, err := New("widgets", s, base, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id1, _ := c.AddDocument(docFields(map[string]any{"name": "Alice"}))
	id2, _ := c.AddDocument(docFields(map[string]any{"name": "Bob"}))
	c.RemoveDocument(id1)

	reloaded, err := FromFiles(base, "widgets", Options{})
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	if _, ok := reloaded.GetDocument(id1); ok {
		t.Fatal("deleted document should not reappear after reload")
	}
	if _, ok := reloaded.GetDocument(id2); !ok {
		t.Fatal("surviving document should be present after reload")
	}
	if reloaded.Inserts() != 2 {
		t.Fatalf("reloaded Inserts() = %d, want 2", reloaded.Inserts())
	}
}

func TestFromFiles_RebuildsIndexWhenOptedIn(t *testing.T) {
	base := t.TempDir()
	s, _ := schema.New(map[string]schema.FieldDefinition{
		"name": schema.NewFieldDefinition(schema.StringType()),
	})
	c, err := New("widgets", s, base, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, _ := c.AddDocument(docFields(map[string]any{"name": "Alice"}))
	wantOffset := c.DocumentIndices()[id]

	reloaded, err := FromFiles(base, "widgets", Options{Indexed: true})
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	defer reloaded.Close()

	offset, ok, err := reloaded.IndexLookup(id)
	if err != nil || !ok {
		t.Fatalf("IndexLookup: ok=%v err=%v", ok, err)
	}
	if offset != wantOffset {
		t.Fatalf("IndexLookup offset = %d, want %d", offset, wantOffset)
	}
}
