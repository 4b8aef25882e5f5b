// Package document implements the dynamic, insertion-ordered document value
// that flows through the log and collection layers.
package document

import (
	"fmt"
)

// IDKind distinguishes the two DocId variants a collection may use.
type IDKind uint8

const (
	IDInt IDKind = iota
	IDString
)

func (k IDKind) String() string {
	if k == IDString {
		return "string"
	}
	return "int"
}

// DocId is a tagged union over the two identifier shapes a collection's
// schema may fix for its id field: a 64-bit unsigned integer or a textual
// id (conventionally a UUIDv4 string). It is comparable and safe to use as
// a map key.
type DocId struct {
	kind IDKind
	i    uint64
	s    string
}

// NewIntID wraps an integer id.
func NewIntID(v uint64) DocId {
	return DocId{kind: IDInt, i: v}
}

// NewStringID wraps a string id.
func NewStringID(v string) DocId {
	return DocId{kind: IDString, s: v}
}

// Kind reports which variant id holds.
func (id DocId) Kind() IDKind { return id.kind }

// Int returns the integer value; it is only meaningful when Kind() == IDInt.
func (id DocId) Int() uint64 { return id.i }

// Str returns the string value; it is only meaningful when Kind() == IDString.
func (id DocId) Str() string { return id.s }

// String returns a total display form of the id, usable for log messages
// and as a map key in contexts that need a string.
func (id DocId) String() string {
	if id.kind == IDString {
		return id.s
	}
	return fmt.Sprintf("%d", id.i)
}

// Equal reports whether id and other denote the same identifier.
func (id DocId) Equal(other DocId) bool {
	return id == other
}

// ToBSON converts the id to the dynamic value stored under the id field in
// a document's BSON map.
func (id DocId) ToBSON() any {
	if id.kind == IDString {
		return id.s
	}
	return int64(id.i)
}

// DocIdFromBSON interprets a raw BSON value read back from a document's id
// field as a DocId of the given kind. It fails if the value's BSON type
// does not match kind.
func DocIdFromBSON(kind IDKind, v any) (DocId, error) {
	switch kind {
	case IDString:
		s, ok := v.(string)
		if !ok {
			return DocId{}, fmt.Errorf("document: id value %#v is not a string", v)
		}
		return NewStringID(s), nil
	case IDInt:
		switch n := v.(type) {
		case int64:
			return NewIntID(uint64(n)), nil
		case int32:
			return NewIntID(uint64(n)), nil
		case int:
			return NewIntID(uint64(n)), nil
		default:
			return DocId{}, fmt.Errorf("document: id value %#v is not an integer", v)
		}
	default:
		return DocId{}, fmt.Errorf("document: unknown id kind %v", kind)
	}
}

// EncodeKey returns the byte encoding of id suitable for use as a B+ tree
// key: big-endian uint64 for IDInt, raw UTF-8 for IDString.
func (id DocId) EncodeKey() []byte {
	if id.kind == IDString {
		return []byte(id.s)
	}
	out := make([]byte, 8)
	v := id.i
	for i := 7; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}
