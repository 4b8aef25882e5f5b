package pager

import (
	"fmt"
	"path/filepath"
	"testing"
)

func openTree(t *testing.T) *Tree {
	t.Helper()
	p, err := Open(filepath.Join(t.TempDir(), "tree.idx"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	tr, err := OpenTree(p)
	if err != nil {
		t.Fatalf("OpenTree: %v", err)
	}
	return tr
}

func val(s string) [ValueSize]byte {
	var v [ValueSize]byte
	copy(v[:], s)
	return v
}

func TestTree_GetOnEmpty(t *testing.T) {
	tr := openTree(t)
	_, found, err := tr.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("expected not found on empty tree")
	}
}

func TestTree_InsertGetRoundTrip(t *testing.T) {
	tr := openTree(t)
	if err := tr.Insert([]byte("alpha"), val("one")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert([]byte("beta"), val("two")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	v, found, err := tr.Get([]byte("alpha"))
	if err != nil || !found {
		t.Fatalf("Get(alpha) found=%v err=%v", found, err)
	}
	if v != val("one") {
		t.Fatalf("Get(alpha) = %v, want one", v)
	}

	if err := tr.Insert([]byte("alpha"), val("dup")); err != ErrKeyExists {
		t.Fatalf("Insert duplicate: got %v, want ErrKeyExists", err)
	}
}

func TestTree_UpdateAndNotFound(t *testing.T) {
	tr := openTree(t)
	if err := tr.Insert([]byte("k"), val("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Update([]byte("k"), val("v2")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	v, found, err := tr.Get([]byte("k"))
	if err != nil || !found || v != val("v2") {
		t.Fatalf("Get after update = %v, found=%v, err=%v", v, found, err)
	}

	if err := tr.Update([]byte("absent"), val("x")); err != ErrKeyNotFound {
		t.Fatalf("Update missing key: got %v, want ErrKeyNotFound", err)
	}
}

func TestTree_DeleteIsIdempotent(t *testing.T) {
	tr := openTree(t)
	if err := tr.Insert([]byte("k"), val("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tr.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete (again): %v", err)
	}
	_, found, err := tr.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("expected key gone after delete")
	}
}

func TestTree_InsertTooLargeKey(t *testing.T) {
	tr := openTree(t)
	big := make([]byte, PageSize)
	if err := tr.Insert(big, val("x")); err != ErrKeyTooLarge {
		t.Fatalf("Insert oversized key: got %v, want ErrKeyTooLarge", err)
	}
}

func TestTree_ScanOrdersByKey(t *testing.T) {
	tr := openTree(t)
	keys := []string{"delta", "alpha", "charlie", "bravo"}
	for _, k := range keys {
		if err := tr.Insert([]byte(k), val(k)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	entries, err := tr.Scan([]byte("aaa"), []byte("zzz"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie", "delta"}
	if len(entries) != len(want) {
		t.Fatalf("Scan returned %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if string(entries[i].Key) != w {
			t.Fatalf("entry %d = %q, want %q", i, entries[i].Key, w)
		}
	}
}

func TestTree_ScanRespectsBounds(t *testing.T) {
	tr := openTree(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := tr.Insert([]byte(k), val(k)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}
	entries, err := tr.Scan([]byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, string(e.Key))
	}
	want := []string{"b", "c", "d"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Scan(b,d) = %v, want %v", got, want)
	}
}

// TestTree_ManyInsertsForceSplits drives enough insertions to force repeated
// leaf and internal splits, then verifies every key is still reachable via
// Get and that Scan still yields every key in order.
func TestTree_ManyInsertsForceSplits(t *testing.T) {
	tr := openTree(t)
	const n = 500
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%04d", i)
		if err := tr.Insert([]byte(k), val(k)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%04d", i)
		v, found, err := tr.Get([]byte(k))
		if err != nil || !found {
			t.Fatalf("Get(%s) found=%v err=%v", k, found, err)
		}
		if v != val(k) {
			t.Fatalf("Get(%s) = %v, want %v", k, v, val(k))
		}
	}

	entries, err := tr.Scan([]byte("key-0000"), []byte("key-9999"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("Scan returned %d entries, want %d", len(entries), n)
	}
	for i := 1; i < len(entries); i++ {
		if string(entries[i-1].Key) >= string(entries[i].Key) {
			t.Fatalf("Scan not in ascending order at %d: %q >= %q", i, entries[i-1].Key, entries[i].Key)
		}
	}
}

// TestTree_ManyDeletesForceMerges inserts a large population, deletes most
// of it (forcing underflow-triggered merges, including root collapse), and
// checks the survivors remain correctly reachable.
func TestTree_ManyDeletesForceMerges(t *testing.T) {
	tr := openTree(t)
	const n = 500
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%04d", i)
		if err := tr.Insert([]byte(k), val(k)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	// Delete every key except a handful scattered across the range.
	keep := map[int]bool{0: true, 1: true, 250: true, 498: true, 499: true}
	for i := 0; i < n; i++ {
		if keep[i] {
			continue
		}
		k := fmt.Sprintf("key-%04d", i)
		if err := tr.Delete([]byte(k)); err != nil {
			t.Fatalf("Delete(%s): %v", k, err)
		}
	}

	for i := range keep {
		k := fmt.Sprintf("key-%04d", i)
		v, found, err := tr.Get([]byte(k))
		if err != nil || !found {
			t.Fatalf("Get(%s) after mass delete: found=%v err=%v", k, found, err)
		}
		if v != val(k) {
			t.Fatalf("Get(%s) = %v, want %v", k, v, val(k))
		}
	}

	entries, err := tr.Scan([]byte("key-0000"), []byte("key-9999"))
	if err != nil {
		t.Fatalf("Scan after mass delete: %v", err)
	}
	if len(entries) != len(keep) {
		t.Fatalf("Scan after mass delete returned %d entries, want %d", len(entries), len(keep))
	}

	// Deleting everything should collapse the tree back down to a single
	// empty leaf root.
	for i := range keep {
		k := fmt.Sprintf("key-%04d", i)
		if err := tr.Delete([]byte(k)); err != nil {
			t.Fatalf("Delete(%s): %v", k, err)
		}
	}
	entries, err = tr.Scan([]byte("key-0000"), []byte("key-9999"))
	if err != nil {
		t.Fatalf("Scan after full delete: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Scan after full delete returned %d entries, want 0", len(entries))
	}
}

func TestTree_ReopenPersistsAcrossPager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.idx")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tr, err := OpenTree(p)
	if err != nil {
		t.Fatalf("OpenTree: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := tr.Insert([]byte(k), val(k)); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}
	p.Close()

	p2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	tr2, err := OpenTree(p2)
	if err != nil {
		t.Fatalf("OpenTree (reopen): %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		v, found, err := tr2.Get([]byte(k))
		if err != nil || !found || v != val(k) {
			t.Fatalf("Get(%s) after reopen: v=%v found=%v err=%v", k, v, found, err)
		}
	}
}
