package collection

import (
	"fmt"

	"lumendb/document"
	"lumendb/internal/storage/logfile"
	"lumendb/schema"
)

// AddField adds field to the schema. A Nullable field with no declared
// default is given an implicit Null default. A non-Nullable field with no
// default is rejected once the collection holds any documents. On success,
// every existing document acquires the default value as a new Update
// record; if that fails partway through, the schema change is rolled back
// in memory (the log's Update records already written are not rewound,
// per the collection's general consistency posture — later entries
// supersede earlier ones on replay).
func (c *Collection) AddField(name string, def schema.FieldDefinition) error {
	if c.schema.HasField(name) {
		return fmt.Errorf("%w: %q", ErrFieldExists, name)
	}
	if def.Type.IsID() {
		return fmt.Errorf("%w: %q", ErrSecondIDField, name)
	}

	isNullable := def.Type.Kind == schema.Nullable
	if isNullable && !def.HasDefault {
		def = def.WithDefault(nil)
	}
	if !isNullable && !def.HasDefault && len(c.documentIndices) > 0 {
		return &ErrDefaultRequired{Field: name, ExistingCount: len(c.documentIndices)}
	}

	if err := c.schema.AddField(name, def); err != nil {
		return err
	}

	if def.HasDefault {
		if _, err := c.applyDefaultsToExisting(name, def); err != nil {
			c.schema.RemoveField(name)
			return err
		}
	}
	return c.writeMetadata()
}

// RemoveField removes name from the schema. If name was the id field, a
// replacement `id: IdInt` is synthesized, inserts resets to 0, and every
// document is re-issued a fresh id (SUPPLEMENTED; see addIDsToAllDocuments
// below). Otherwise the field's value is stripped from every existing
// document via Update records.
func (c *Collection) RemoveField(name string) error {
	if !c.schema.HasField(name) {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	isIDField := name == c.idField

	if _, err := c.schema.RemoveField(name); err != nil {
		return err
	}

	if isIDField {
		if err := c.schema.SetField("id", schema.NewFieldDefinition(schema.IdIntType())); err != nil {
			return err
		}
		c.schema.SetIDField("id", document.IDInt)
		c.idField = "id"
		c.idKind = document.IDInt
		c.inserts = 0
		if err := c.addIDsToAllDocuments(name, "id"); err != nil {
			return err
		}
	} else {
		if err := c.cleanupRemovedField(name); err != nil {
			return err
		}
	}
	return c.writeMetadata()
}

// ModifyField replaces an existing field's definition. Four cases, mirroring
// the original's branching exactly:
//   - id -> id: re-id every document in place under the same field name,
//     and adopt the new id kind.
//   - id -> non-id: synthesize a replacement `id: IdInt` field and re-id
//     every document, optionally applying the new field's default.
//   - non-id -> id: rejected; the schema already has an id field.
//   - non-id -> non-id: strip the old value from every document, then
//     reapply a new default if one is declared.
func (c *Collection) ModifyField(name string, newDef schema.FieldDefinition) error {
	oldDef, ok := c.schema.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}

	isNullable := newDef.Type.Kind == schema.Nullable
	if isNullable && !newDef.HasDefault {
		newDef = newDef.WithDefault(nil)
	}
	oldIsID := oldDef.Type.IsID()
	newIsID := newDef.Type.IsID()
	if len(c.documentIndices) > 0 && !isNullable && !newIsID && !newDef.HasDefault {
		return &ErrDefaultRequired{Field: name, ExistingCount: len(c.documentIndices)}
	}

	if !oldIsID && newIsID {
		return fmt.Errorf("%w: %q", ErrSecondIDField, name)
	}

	if err := c.schema.ReplaceField(name, newDef); err != nil {
		return err
	}

	switch {
	case oldIsID && newIsID:
		kind := document.IDInt
		if newDef.Type.Kind == schema.IdString {
			kind = document.IDString
		}
		c.schema.SetIDField(name, kind)
		c.idKind = kind
		if err := c.addIDsToAllDocuments(name, name); err != nil {
			return err
		}
	case oldIsID && !newIsID:
		if err := c.schema.SetField("id", schema.NewFieldDefinition(schema.IdIntType())); err != nil {
			return err
		}
		c.schema.SetIDField("id", document.IDInt)
		c.idField = "id"
		c.idKind = document.IDInt
		if len(c.documentIndices) > 0 && newDef.HasDefault {
			if err := c.addIDsToAllDocuments(name, "id"); err != nil {
				return err
			}
			if _, err := c.applyDefaultsToExisting(name, newDef); err != nil {
				return err
			}
		}
	default:
		if len(c.documentIndices) > 0 {
			if err := c.cleanupRemovedField(name); err != nil {
				return err
			}
			if newDef.HasDefault {
				if _, err := c.applyDefaultsToExisting(name, newDef); err != nil {
					return err
				}
			}
		}
	}
	return c.writeMetadata()
}

// RenameField moves a field's definition and value from old to new across
// the schema and every existing document. If old was the id field, new
// becomes the id field.
func (c *Collection) RenameField(old, new string) error {
	if !c.schema.HasField(old) {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, old)
	}
	if c.schema.HasField(new) {
		return fmt.Errorf("%w: %q", ErrFieldExists, new)
	}

	if err := c.schema.RenameField(old, new); err != nil {
		return err
	}
	if old == c.idField {
		c.idField = new
	}
	if err := c.renameFieldInDocuments(old, new); err != nil {
		return err
	}
	return c.writeMetadata()
}

// applyDefaultsToExisting appends an Update record carrying def's default
// value for field to every existing document.
func (c *Collection) applyDefaultsToExisting(field string, def schema.FieldDefinition) ([]document.DocId, error) {
	if !def.HasDefault {
		return nil, fmt.Errorf("collection: field %q has no default value", field)
	}
	ids := c.allDocIDs()
	var updated []document.DocId
	for _, id := range ids {
		patch := document.New()
		patch.Set(field, def.Default)
		if _, err := c.updateFieldsBypassingIDGuard(id, patch); err != nil {
			return nil, fmt.Errorf("collection: apply default to document %s: %w", id, err)
		}
		updated = append(updated, id)
	}
	return updated, nil
}

// cleanupRemovedField strips field from every existing document that
// carries it, by appending a direct Update record (bypassing the usual
// id-field guard, since the document itself is untouched there).
func (c *Collection) cleanupRemovedField(field string) error {
	for _, id := range c.allDocIDs() {
		doc, ok := c.GetDocument(id)
		if !ok {
			continue
		}
		if _, has := doc.Get(field); !has {
			continue
		}
		cleaned := doc.Clone()
		cleaned.Remove(field)
		if err := c.appendRawUpdate(id, cleaned); err != nil {
			return fmt.Errorf("collection: cleanup field %q on document %s: %w", field, id, err)
		}
	}
	return nil
}

// renameFieldInDocuments moves a value from oldField to newField in every
// existing document that carries oldField.
func (c *Collection) renameFieldInDocuments(oldField, newField string) error {
	for _, id := range c.allDocIDs() {
		doc, ok := c.GetDocument(id)
		if !ok {
			continue
		}
		v, has := doc.Get(oldField)
		if !has {
			continue
		}
		updated := doc.Clone()
		updated.Remove(oldField)
		updated.Set(newField, v)
		if err := c.appendRawUpdate(id, updated); err != nil {
			return fmt.Errorf("collection: rename field on document %s: %w", id, err)
		}
	}
	return nil
}

// addIDsToAllDocuments re-issues a fresh id to every existing document,
// used when the id field itself changes name or kind. inserts resets to 0
// first, so Int-kind re-ids start again from 0 in removal order.
func (c *Collection) addIDsToAllDocuments(oldField, newField string) error {
	c.inserts = 0

	type pending struct{ doc document.Document }
	var toReadd []pending
	for _, id := range c.allDocIDs() {
		doc, ok := c.RemoveDocument(id)
		if !ok {
			continue
		}
		toReadd = append(toReadd, pending{doc: doc})
	}

	for _, p := range toReadd {
		doc := p.doc.Clone()
		doc.Remove(oldField)
		newID := c.generateID()
		doc.Set(newField, newID.ToBSON())
		if _, err := c.AddDocument(doc); err != nil {
			return fmt.Errorf("collection: re-add document with new id: %w", err)
		}
	}
	return nil
}

// allDocIDs snapshots the current set of live document ids, so a caller
// may safely mutate document_indices while iterating.
func (c *Collection) allDocIDs() []document.DocId {
	ids := make([]document.DocId, 0, len(c.documentIndices))
	for id := range c.documentIndices {
		ids = append(ids, id)
	}
	return ids
}

// appendRawUpdate writes doc to the log as an Update record and refreshes
// document_indices[id], bypassing UpdateDocument's id-field guard — used
// internally by schema-evolution steps that legitimately touch the
// id-adjacent shape of a document (cleanup, rename) rather than a
// caller-issued patch.
func (c *Collection) appendRawUpdate(id document.DocId, doc document.Document) error {
	offset, err := c.log.Append(logfile.Update, doc)
	if err != nil {
		return err
	}
	c.documentIndices[id] = offset
	if c.indexed {
		if err := c.idx.Update(id.EncodeKey(), encodeOffset(offset)); err != nil {
			return err
		}
	}
	return nil
}

// updateFieldsBypassingIDGuard is applyDefaultsToExisting's merge step: it
// behaves like UpdateDocument but never rejects a patch that happens to
// share a key with the id field, since defaults are never declared on the
// id field itself (schema.AddField already forbids that).
func (c *Collection) updateFieldsBypassingIDGuard(id document.DocId, patch document.Document) (document.Document, error) {
	offset, ok := c.documentIndices[id]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	rec, err := c.log.ReadAt(offset)
	if err != nil {
		return document.Document{}, err
	}
	merged := rec.Document.Clone()
	for _, key := range patch.Keys() {
		v, _ := patch.Get(key)
		merged.Set(key, v)
	}
	if err := c.appendRawUpdate(id, merged); err != nil {
		return document.Document{}, err
	}
	return merged, nil
}
