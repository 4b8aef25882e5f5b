package logfile

import (
	"os"
	"path/filepath"
	"testing"

	"lumendb/document"
)

func docWithID(id int64, fields map[string]any) document.Document {
	doc := document.New()
	doc.Set("id", id)
	for k, v := range fields {
		doc.Set(k, v)
	}
	return doc
}

func TestLog_AppendCreatesFileAndReturnsOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "col", "logfile.log")
	l := Open(path)

	off1, err := l.Append(Insert, docWithID(1, map[string]any{"name": "Alice"}))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("first offset = %d, want 0", off1)
	}

	off2, err := l.Append(Insert, docWithID(2, map[string]any{"name": "Bob"}))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off2 <= off1 {
		t.Fatalf("second offset %d should be greater than first %d", off2, off1)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected logfile to exist: %v", err)
	}
}

func TestLog_ReadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile.log")
	l := Open(path)

	l.Append(Insert, docWithID(1, map[string]any{"name": "Alice"}))
	l.Append(Update, docWithID(1, map[string]any{"name": "Alice Smith"}))

	records, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2", len(records))
	}
	if records[0].Operation != Insert || records[1].Operation != Update {
		t.Fatalf("unexpected operations: %v, %v", records[0].Operation, records[1].Operation)
	}
	name, _ := records[1].Document.Get("name")
	if name != "Alice Smith" {
		t.Fatalf("records[1] name = %v, want Alice Smith", name)
	}
}

func TestLog_ReadAllOnMissingFile(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "absent.log"))
	records, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records for missing file, got %v", records)
	}
}

func TestLog_ReadAtReturnsRecordAtOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile.log")
	l := Open(path)

	l.Append(Insert, docWithID(1, map[string]any{"name": "Alice"}))
	off2, _ := l.Append(Insert, docWithID(2, map[string]any{"name": "Bob"}))

	rec, err := l.ReadAt(off2)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	id, _ := rec.Document.Get("id")
	if id != int64(2) {
		t.Fatalf("ReadAt(off2) id = %v, want 2", id)
	}
}

func TestLog_ReadAtOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile.log")
	l := Open(path)
	l.Append(Insert, docWithID(1, nil))

	if _, err := l.ReadAt(9999); err != ErrOffsetOutOfRange {
		t.Fatalf("ReadAt out of range: got %v, want ErrOffsetOutOfRange", err)
	}
}

func TestLog_ReadAllToleratesCorruptTrailingBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile.log")
	l := Open(path)
	l.Append(Insert, docWithID(1, map[string]any{"name": "Alice"}))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	f.Write([]byte("garbage not bson\n"))
	f.Close()

	l.Append(Insert, docWithID(2, map[string]any{"name": "Bob"}))

	records, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2 (corrupt record skipped)", len(records))
	}
}

func TestLog_CompactComplexSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile.log")
	l := Open(path)

	l.Append(Insert, docWithID(1, map[string]any{"name": "Alice", "age": int64(30)}))
	l.Append(Update, docWithID(1, map[string]any{"name": "Alice Smith", "age": int64(31)}))
	l.Append(Insert, docWithID(2, map[string]any{"name": "Bob"}))
	l.Append(Delete, docWithID(2, map[string]any{"name": "Bob"}))
	l.Append(Insert, docWithID(3, map[string]any{"name": "Charlie"}))

	if err := l.Compact("id"); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	records, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll after compact: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ReadAll after compact returned %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.Operation != Insert {
			t.Fatalf("compacted record has operation %v, want INSERT", r.Operation)
		}
	}

	byID := map[int64]document.Document{}
	for _, r := range records {
		id, _ := r.Document.Get("id")
		byID[id.(int64)] = r.Document
	}
	if _, ok := byID[2]; ok {
		t.Fatal("deleted document 2 should not survive compaction")
	}
	name, _ := byID[1].Get("name")
	if name != "Alice Smith" {
		t.Fatalf("doc 1 name after compact = %v, want Alice Smith", name)
	}
	if _, ok := byID[3]; !ok {
		t.Fatal("doc 3 should survive compaction")
	}
}

func TestLog_CompactEmptyLogRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile.log")
	l := Open(path)
	l.Append(Insert, docWithID(1, nil))
	l.Append(Delete, docWithID(1, nil))

	if err := l.Compact("id"); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected logfile removed after compacting to empty, stat err=%v", err)
	}

	records, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("ReadAll after empty compact = %d records, want 0", len(records))
	}
}
