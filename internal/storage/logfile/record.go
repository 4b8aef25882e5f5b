package logfile

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"lumendb/document"
)

// Operation names the kind of mutation a log record represents.
type Operation string

const (
	Insert Operation = "INSERT"
	Update Operation = "UPDATE"
	Delete Operation = "DELETE"
)

// Record is one framed entry in a collection's log: a timestamp, the
// operation that produced it, and the full document as it stood at that
// point. Offset is populated by ReadAll/ReadAt; it is the byte position at
// which the record's BSON bytes began.
type Record struct {
	Timestamp string
	Operation Operation
	Document  document.Document
	Offset    int64
}

type wireRecord struct {
	Timestamp string   `bson:"timestamp"`
	Operation string   `bson:"operation"`
	Document  bson.D   `bson:"document"`
}

func (r Record) marshal() ([]byte, error) {
	w := wireRecord{
		Timestamp: r.Timestamp,
		Operation: string(r.Operation),
		Document:  r.Document.Raw(),
	}
	b, err := bson.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("logfile: marshal record: %w", err)
	}
	return b, nil
}

func unmarshalRecord(data []byte) (Record, error) {
	var w wireRecord
	if err := bson.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return Record{
		Timestamp: w.Timestamp,
		Operation: Operation(w.Operation),
		Document:  document.FromBSON(w.Document),
	}, nil
}
