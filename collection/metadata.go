package collection

import (
	"fmt"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"

	"lumendb/document"
	"lumendb/schema"
)

type wireMetadata struct {
	Name    string `bson:"name"`
	Inserts int64  `bson:"inserts"`
	Schema  bson.D `bson:"schema"`
}

func (c *Collection) metadataPath() string {
	return filepath.Join(c.basePath, "metadata.bin")
}

// writeMetadata persists the collection's name, insert counter, and
// schema to metadata.bin, overwriting any previous contents.
func (c *Collection) writeMetadata() error {
	if err := os.MkdirAll(c.basePath, 0o755); err != nil {
		return fmt.Errorf("collection: create directory: %w", err)
	}

	m := wireMetadata{
		Name:    c.name,
		Inserts: int64(c.inserts),
		Schema:  c.schema.ToDocument().Raw(),
	}
	data, err := bson.Marshal(m)
	if err != nil {
		return fmt.Errorf("collection: marshal metadata: %w", err)
	}
	if err := os.WriteFile(c.metadataPath(), data, 0o644); err != nil {
		return fmt.Errorf("collection: write metadata: %w", err)
	}
	return nil
}

// readMetadata loads name, inserts, and schema from collectionDir's
// metadata.bin.
func readMetadata(collectionDir string) (name string, inserts uint64, sch *schema.Schema, err error) {
	path := filepath.Join(collectionDir, "metadata.bin")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("collection: read metadata: %w", err)
	}

	var m wireMetadata
	if err := bson.Unmarshal(data, &m); err != nil {
		return "", 0, nil, fmt.Errorf("collection: unmarshal metadata: %w", err)
	}

	sch, err = schema.FromDocument(document.FromBSON(m.Schema))
	if err != nil {
		return "", 0, nil, fmt.Errorf("collection: parse schema: %w", err)
	}
	return m.Name, uint64(m.Inserts), sch, nil
}
