package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is an insertion-ordered map from field name to dynamic BSON
// value, with a distinguished id field. It wraps bson.D so the field order
// a caller built is the order that survives an encode/decode round trip.
type Document struct {
	fields bson.D
}

// New returns an empty document.
func New() Document {
	return Document{}
}

// FromBSON wraps an existing ordered field list as a Document. The slice is
// copied so later mutation through the Document cannot alias the caller's.
func FromBSON(d bson.D) Document {
	out := make(bson.D, len(d))
	copy(out, d)
	return Document{fields: out}
}

// Raw returns the document's fields as a bson.D, suitable for passing to
// bson.Marshal or embedding in a log record.
func (doc Document) Raw() bson.D {
	return doc.fields
}

// Get returns the value stored under key, if any.
func (doc Document) Get(key string) (any, bool) {
	for _, e := range doc.fields {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set inserts or overwrites key's value, preserving its existing position
// if key is already present, otherwise appending it.
func (doc *Document) Set(key string, value any) {
	for i, e := range doc.fields {
		if e.Key == key {
			doc.fields[i].Value = value
			return
		}
	}
	doc.fields = append(doc.fields, bson.E{Key: key, Value: value})
}

// Remove deletes key, if present.
func (doc *Document) Remove(key string) {
	for i, e := range doc.fields {
		if e.Key == key {
			doc.fields = append(doc.fields[:i], doc.fields[i+1:]...)
			return
		}
	}
}

// Rename moves the value stored under old to new, preserving position. It
// is a no-op if old is absent.
func (doc *Document) Rename(old, new string) {
	for i, e := range doc.fields {
		if e.Key == old {
			doc.fields[i].Key = new
			return
		}
	}
}

// Keys returns the field names in insertion order.
func (doc Document) Keys() []string {
	out := make([]string, len(doc.fields))
	for i, e := range doc.fields {
		out[i] = e.Key
	}
	return out
}

// Len returns the number of fields.
func (doc Document) Len() int {
	return len(doc.fields)
}

// Clone returns a deep-enough copy: the field slice is copied, but nested
// BSON values (arrays, sub-documents) are shared, matching the teacher's
// copy-on-write posture elsewhere in the storage layer.
func (doc Document) Clone() Document {
	out := make(bson.D, len(doc.fields))
	copy(out, doc.fields)
	return Document{fields: out}
}

// Marshal encodes the document as BSON bytes.
func (doc Document) Marshal() ([]byte, error) {
	b, err := bson.Marshal(doc.fields)
	if err != nil {
		return nil, fmt.Errorf("document: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes BSON bytes into a Document, preserving field order.
func Unmarshal(data []byte) (Document, error) {
	var d bson.D
	if err := bson.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("document: unmarshal: %w", err)
	}
	return Document{fields: d}, nil
}

// Equal reports whether doc and other have the same fields and values,
// irrespective of order.
func (doc Document) Equal(other Document) bool {
	if len(doc.fields) != len(other.fields) {
		return false
	}
	for _, e := range doc.fields {
		ov, ok := other.Get(e.Key)
		if !ok {
			return false
		}
		if !valuesEqual(e.Value, ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	aa, aIsArr := a.(bson.A)
	bb, bIsArr := b.(bson.A)
	if aIsArr || bIsArr {
		if !aIsArr || !bIsArr || len(aa) != len(bb) {
			return false
		}
		for i := range aa {
			if !valuesEqual(aa[i], bb[i]) {
				return false
			}
		}
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
