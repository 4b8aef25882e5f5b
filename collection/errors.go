package collection

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound reports a lookup, update, or removal by an id
	// that does not exist in document_indices.
	ErrDocumentNotFound = errors.New("collection: document not found")

	// ErrDuplicateID reports add_document with a caller-supplied id that
	// already exists in the collection.
	ErrDuplicateID = errors.New("collection: duplicate document id")

	// ErrIDFieldImmutable reports an UpdateDocument patch that tries to
	// touch the id field.
	ErrIDFieldImmutable = errors.New("collection: cannot update id field")

	// ErrFieldExists reports a schema-evolution operation naming a field
	// that is already present.
	ErrFieldExists = errors.New("collection: field already exists")

	// ErrFieldNotFound reports a schema-evolution operation naming a field
	// that is not present.
	ErrFieldNotFound = errors.New("collection: field not found")

	// ErrSecondIDField reports an attempt to add or modify a field into a
	// second id-typed field.
	ErrSecondIDField = errors.New("collection: schema already has an id field")
)

// ErrDefaultRequired reports AddField/ModifyField rejecting a non-nullable
// field with no default value on a non-empty collection. It carries the
// document count so a caller can render the original's diagnostic without
// string-parsing (SUPPLEMENTED FEATURE 5).
type ErrDefaultRequired struct {
	Field         string
	ExistingCount int
}

func (e *ErrDefaultRequired) Error() string {
	return fmt.Sprintf("collection: field %q needs a default value: collection has %d existing document(s)", e.Field, e.ExistingCount)
}
