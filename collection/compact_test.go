package collection

import (
	"testing"

	"lumendb/schema"
)

// Scenario 6 from spec.md §8: compaction.
func TestCollection_Compact(t *testing.T) {
	c := newTestCollection(t, map[string]schema.FieldDefinition{
		"name": schema.NewFieldDefinition(schema.StringType()),
	})

	id1, _ := c.AddDocument(docFields(map[string]any{"name": "Alice"}))
	c.UpdateDocument(id1, docFields(map[string]any{"name": "Alice Smith"}))
	id2, _ := c.AddDocument(docFields(map[string]any{"name": "Bob"}))
	c.RemoveDocument(id2)
	id3, _ := c.AddDocument(docFields(map[string]any{"name": "Charlie"}))

	if err := c.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	if len(c.DocumentIndices()) != 2 {
		t.Fatalf("document_indices after compact has %d entries, want 2", len(c.DocumentIndices()))
	}
	if _, ok := c.GetDocument(id2); ok {
		t.Fatal("deleted document should not survive compaction")
	}

	doc1, ok := c.GetDocument(id1)
	if !ok || mustGet(doc1, "name") != "Alice Smith" {
		t.Fatalf("doc1 after compact = %v, ok=%v, want Alice Smith", doc1, ok)
	}
	doc3, ok := c.GetDocument(id3)
	if !ok || mustGet(doc3, "name") != "Charlie" {
		t.Fatalf("doc3 after compact = %v, ok=%v, want Charlie", doc3, ok)
	}
}

func TestCollection_CompactIndexedCollection(t *testing.T) {
	s, err := schema.New(map[string]schema.FieldDefinition{
		"name": schema.NewFieldDefinition(schema.StringType()),
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	c, err := New("people", s, t.TempDir(), Options{Indexed: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	id, _ := c.AddDocument(docFields(map[string]any{"name": "Alice"}))
	c.UpdateDocument(id, docFields(map[string]any{"name": "Alice Smith"}))

	if err := c.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	offset, ok, err := c.IndexLookup(id)
	if err != nil || !ok {
		t.Fatalf("IndexLookup after compact: ok=%v err=%v", ok, err)
	}
	if offset != c.DocumentIndices()[id] {
		t.Fatalf("IndexLookup offset = %d, want %d", offset, c.DocumentIndices()[id])
	}
}

func mustGet(doc interface{ Get(string) (any, bool) }, key string) any {
	v, _ := doc.Get(key)
	return v
}
