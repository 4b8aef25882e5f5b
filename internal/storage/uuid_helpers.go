// Package storage holds small helpers shared across the pager, log, and
// collection layers that don't belong to any one of them.
package storage

import (
	"github.com/google/uuid"
)

// NewDocID returns a freshly generated version-4 UUID string, used by
// Collection as the id value for String-typed id fields.
func NewDocID() string {
	return uuid.New().String()
}

// ParseUUID parses a UUID string, used to validate a caller-supplied
// String id before it is accepted as a DocId.
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
