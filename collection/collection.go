// Package collection implements the schema-enforcing, append-only
// document collection: a directory holding a logfile.log, a metadata.bin,
// and (for collections that opt in) a pager-backed B+Tree index mirroring
// id to log offset.
package collection

import (
	"fmt"
	"path/filepath"
	"sort"

	"lumendb/document"
	"lumendb/internal/storage"
	"lumendb/internal/storage/logfile"
	"lumendb/internal/storage/pager"
	"lumendb/schema"
)

// Options configures optional behavior of a Collection at construction
// time.
type Options struct {
	// Indexed opts the collection into a persistent id->offset mirror
	// backed by a pager.Tree stored at index.idx, in addition to the
	// in-memory document_indices map every collection keeps regardless.
	Indexed bool
}

// Collection is a named set of schema-validated documents, persisted as
// an append-only log plus a small metadata file.
type Collection struct {
	name            string
	schema          *schema.Schema
	documentIndices map[document.DocId]int64
	idField         string
	idKind          document.IDKind
	inserts         uint64
	basePath        string

	log        *logfile.Log
	indexed    bool
	indexFresh bool
	pgr        *pager.Pager
	idx        *pager.Tree
}

// New creates a Collection named name under basePath/name, with schema
// sch. The collection's id field and id kind are taken from sch, which
// has already run Schema.EnsureID at construction.
func New(name string, sch *schema.Schema, basePath string, opts Options) (*Collection, error) {
	base := filepath.Join(basePath, name)
	c := &Collection{
		name:            name,
		schema:          sch,
		documentIndices: make(map[document.DocId]int64),
		idField:         sch.IDField(),
		idKind:          sch.IDKind(),
		basePath:        base,
		log:             logfile.Open(filepath.Join(base, "logfile.log")),
	}
	if opts.Indexed {
		if err := c.openIndex(); err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
	}
	return c, nil
}

func (c *Collection) indexPath() string {
	return filepath.Join(c.basePath, "index.idx")
}

func (c *Collection) openIndex() error {
	p, err := pager.Open(c.indexPath())
	if err != nil {
		return err
	}
	fresh := p.TotalPages() == 1 && p.Root() == 0
	t, err := pager.OpenTree(p)
	if err != nil {
		p.Close()
		return err
	}
	c.pgr = p
	c.idx = t
	c.indexed = true
	c.indexFresh = fresh
	return nil
}

// Close releases the collection's index pager, if it opened one. The
// logfile itself is never held open between calls.
func (c *Collection) Close() error {
	if c.pgr != nil {
		return c.pgr.Close()
	}
	return nil
}

// AddDocument validates doc against the schema (after applying declared
// defaults), assigns it an id if the caller did not supply one, appends it
// to the log, and records its offset. inserts is bumped by exactly one on
// every successful insert, whether or not the caller supplied the id
// themselves — it is not advanced to track past a user-supplied integer
// id. A schema whose auto-generated ids collide with a previously
// user-supplied id will surface as ErrDuplicateID on the later insert;
// this mirrors the reference implementation's behavior rather than
// papering over it.
func (c *Collection) AddDocument(doc document.Document) (document.DocId, error) {
	c.schema.ApplyDefaults(&doc)
	if err := c.schema.Validate(doc); err != nil {
		return document.DocId{}, err
	}

	id, ok, err := c.docIDFromDocument(doc)
	if err != nil {
		return document.DocId{}, err
	}
	if !ok {
		id = c.generateID()
		doc.Set(c.idField, id.ToBSON())
	}

	if _, exists := c.documentIndices[id]; exists {
		return document.DocId{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	offset, err := c.log.Append(logfile.Insert, doc)
	if err != nil {
		return document.DocId{}, fmt.Errorf("collection: append document: %w", err)
	}
	c.documentIndices[id] = offset
	if c.indexed {
		if err := c.idx.Insert(id.EncodeKey(), encodeOffset(offset)); err != nil {
			return document.DocId{}, fmt.Errorf("collection: index insert: %w", err)
		}
	}

	c.inserts++
	if err := c.writeMetadata(); err != nil {
		return document.DocId{}, fmt.Errorf("collection: write metadata: %w", err)
	}
	return id, nil
}

// generateID produces the next id for a caller that did not supply one:
// a fresh UUIDv4 for IdString collections, or the current insert counter
// for IdInt collections.
func (c *Collection) generateID() document.DocId {
	if c.idKind == document.IDString {
		return document.NewStringID(storage.NewDocID())
	}
	return document.NewIntID(c.inserts)
}

// docIDFromDocument extracts the id value from doc's id field, if present
// and of a BSON type consistent with the collection's id kind. A present
// but mistyped id field is treated the same as a missing one — the caller
// generates a fresh id and overwrites it. A caller-supplied String id is
// validated as a well-formed UUID before it is accepted: generateID only
// ever produces UUIDv4 values for an IdString collection, so a malformed
// caller-supplied one is rejected as bad input rather than silently stored.
func (c *Collection) docIDFromDocument(doc document.Document) (document.DocId, bool, error) {
	v, ok := doc.Get(c.idField)
	if !ok {
		return document.DocId{}, false, nil
	}
	id, err := document.DocIdFromBSON(c.idKind, v)
	if err != nil {
		return document.DocId{}, false, nil
	}
	if c.idKind == document.IDString {
		if _, err := storage.ParseUUID(id.Str()); err != nil {
			return document.DocId{}, false, fmt.Errorf("collection: id field %q: %w", c.idField, err)
		}
	}
	return id, true, nil
}

// UpdateDocument merges update's fields into the document stored under id
// and appends the result as a new log record. The id field itself may not
// be touched by update.
func (c *Collection) UpdateDocument(id document.DocId, update document.Document) (document.Document, error) {
	if _, ok := update.Get(c.idField); ok {
		return document.Document{}, fmt.Errorf("%w: %q", ErrIDFieldImmutable, c.idField)
	}

	offset, ok := c.documentIndices[id]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	rec, err := c.log.ReadAt(offset)
	if err != nil {
		return document.Document{}, fmt.Errorf("collection: read current document: %w", err)
	}

	merged := rec.Document.Clone()
	for _, key := range update.Keys() {
		v, _ := update.Get(key)
		merged.Set(key, v)
	}

	if err := c.schema.Validate(merged); err != nil {
		return document.Document{}, err
	}

	newOffset, err := c.log.Append(logfile.Update, merged)
	if err != nil {
		return document.Document{}, fmt.Errorf("collection: append update: %w", err)
	}
	c.documentIndices[id] = newOffset
	if c.indexed {
		if err := c.idx.Update(id.EncodeKey(), encodeOffset(newOffset)); err != nil {
			return document.Document{}, fmt.Errorf("collection: index update: %w", err)
		}
	}
	return merged, nil
}

// RemoveDocument deletes the document stored under id, appending a
// tombstone Delete record, and returns the document as it stood just
// before removal. It reports false if id is not present.
func (c *Collection) RemoveDocument(id document.DocId) (document.Document, bool) {
	offset, ok := c.documentIndices[id]
	if !ok {
		return document.Document{}, false
	}
	delete(c.documentIndices, id)
	if c.indexed {
		c.idx.Delete(id.EncodeKey())
	}

	rec, err := c.log.ReadAt(offset)
	if err != nil {
		return document.Document{}, false
	}

	c.log.Append(logfile.Delete, rec.Document)
	return rec.Document, true
}

// GetDocument returns the document stored under id, if present.
func (c *Collection) GetDocument(id document.DocId) (document.Document, bool) {
	offset, ok := c.documentIndices[id]
	if !ok {
		return document.Document{}, false
	}
	rec, err := c.log.ReadAt(offset)
	if err != nil {
		return document.Document{}, false
	}
	return rec.Document, true
}

// Documents returns every live document in the collection. Order is
// unspecified (SUPPLEMENTED FEATURE 1).
func (c *Collection) Documents() []document.Document {
	out := make([]document.Document, 0, len(c.documentIndices))
	for id := range c.documentIndices {
		if doc, ok := c.GetDocument(id); ok {
			out = append(out, doc)
		}
	}
	return out
}

// HasField reports whether the schema declares field.
func (c *Collection) HasField(field string) bool {
	return c.schema.HasField(field)
}

// ListFields returns the collection's field names in sorted order.
func (c *Collection) ListFields() []string {
	names := c.schema.FieldNames()
	sort.Strings(names)
	return names
}

// Schema returns the collection's schema.
func (c *Collection) Schema() *schema.Schema { return c.schema }

// Inserts returns the number of inserts performed on this collection.
func (c *Collection) Inserts() uint64 { return c.inserts }

// BasePath returns the collection's on-disk directory.
func (c *Collection) BasePath() string { return c.basePath }

// IDFieldName returns the name of the collection's id field.
func (c *Collection) IDFieldName() string { return c.idField }

// IndexLookup queries the persistent B+Tree mirror for id's log offset.
// It only returns meaningful results for a collection opened with
// Options.Indexed; otherwise it always reports false.
func (c *Collection) IndexLookup(id document.DocId) (int64, bool, error) {
	if !c.indexed {
		return 0, false, nil
	}
	buf, ok, err := c.idx.Get(id.EncodeKey())
	if err != nil || !ok {
		return 0, ok, err
	}
	return decodeOffset(buf), true, nil
}

// DocumentIndices returns a copy of the id->offset map.
func (c *Collection) DocumentIndices() map[document.DocId]int64 {
	out := make(map[document.DocId]int64, len(c.documentIndices))
	for k, v := range c.documentIndices {
		out[k] = v
	}
	return out
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

func encodeOffset(offset int64) [pager.ValueSize]byte {
	var out [pager.ValueSize]byte
	v := uint64(offset)
	for i := 7; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func decodeOffset(buf [pager.ValueSize]byte) int64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return int64(v)
}
