package collection

import (
	"fmt"
	"os"

	"lumendb/document"
)

// Compact rewrites the collection's logfile.log to hold exactly one
// INSERT record per live document (SUPPLEMENTED FEATURE 6), then
// refreshes document_indices and, if indexed, rebuilds the B+Tree mirror
// to match the new offsets.
func (c *Collection) Compact() error {
	if err := c.log.Compact(c.idField); err != nil {
		return fmt.Errorf("collection: compact: %w", err)
	}

	records, err := c.log.ReadAll()
	if err != nil {
		return fmt.Errorf("collection: compact: reread log: %w", err)
	}

	newIndices := make(map[document.DocId]int64, len(records))
	for _, rec := range records {
		v, ok := rec.Document.Get(c.idField)
		if !ok {
			continue
		}
		id, err := document.DocIdFromBSON(c.idKind, v)
		if err != nil {
			continue
		}
		newIndices[id] = rec.Offset
	}
	c.documentIndices = newIndices

	if c.indexed {
		if err := c.rebuildIndex(); err != nil {
			return fmt.Errorf("collection: compact: rebuild index: %w", err)
		}
	}
	return nil
}

func (c *Collection) rebuildIndex() error {
	if err := c.pgr.Close(); err != nil {
		return err
	}
	if err := os.Remove(c.indexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := c.openIndex(); err != nil {
		return err
	}
	for id, offset := range c.documentIndices {
		if err := c.idx.Insert(id.EncodeKey(), encodeOffset(offset)); err != nil {
			return err
		}
	}
	return nil
}
