package collection

import (
	"fmt"
	"path/filepath"

	"lumendb/document"
	"lumendb/internal/storage/logfile"
)

// FromFiles reconstitutes a Collection from basePath/name: it reads
// metadata.bin for the schema, name, and insert counter, then streams
// logfile.log to rebuild document_indices from scratch — Insert/Update
// records set the id's entry to that record's offset, Delete records
// remove it — so the resulting map reflects only the latest live state.
func FromFiles(basePath, name string, opts Options) (*Collection, error) {
	dir := filepath.Join(basePath, name)
	_, inserts, sch, err := readMetadata(dir)
	if err != nil {
		return nil, fmt.Errorf("collection: from files %q: %w", name, err)
	}

	c, err := New(name, sch, basePath, opts)
	if err != nil {
		return nil, err
	}
	c.inserts = inserts

	records, err := c.log.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("collection: from files %q: read log: %w", name, err)
	}
	for _, rec := range records {
		v, ok := rec.Document.Get(c.idField)
		if !ok {
			return nil, fmt.Errorf("collection: from files %q: log record missing id field %q", name, c.idField)
		}
		id, err := document.DocIdFromBSON(c.idKind, v)
		if err != nil {
			return nil, fmt.Errorf("collection: from files %q: %w", name, err)
		}

		switch rec.Operation {
		case logfile.Insert, logfile.Update:
			c.documentIndices[id] = rec.Offset
		case logfile.Delete:
			delete(c.documentIndices, id)
		}
	}

	if c.indexed && c.indexFresh {
		for id, offset := range c.documentIndices {
			if err := c.idx.Insert(id.EncodeKey(), encodeOffset(offset)); err != nil {
				return nil, fmt.Errorf("collection: from files %q: rebuild index: %w", name, err)
			}
		}
	}

	return c, nil
}
