package schema

import (
	"fmt"
	"sort"

	"lumendb/document"
)

// Schema is an unordered mapping from field name to FieldDefinition, with
// exactly one id field.
type Schema struct {
	fields  map[string]FieldDefinition
	idField string
	idKind  document.IDKind
}

// New validates every field's type, then runs EnsureID: a schema with no
// id field gets a synthesized `id: IdInt`; more than one id field is a
// construction-time error.
func New(fields map[string]FieldDefinition) (*Schema, error) {
	copied := make(map[string]FieldDefinition, len(fields))
	for name, def := range fields {
		if err := def.Type.Validate(); err != nil {
			return nil, fmt.Errorf("schema: field %q: %w", name, err)
		}
		copied[name] = def
	}
	s := &Schema{fields: copied}
	if err := s.EnsureID(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureID scans the schema's fields for an Id-typed field. With zero id
// fields it synthesizes `id: IdInt`. With exactly one, it records that
// field as the schema's id. With more than one, it fails.
func (s *Schema) EnsureID() error {
	type idField struct {
		name string
		kind document.IDKind
	}
	var found []idField
	for name, def := range s.fields {
		switch def.Type.Kind {
		case IdString:
			found = append(found, idField{name, document.IDString})
		case IdInt:
			found = append(found, idField{name, document.IDInt})
		}
	}

	switch len(found) {
	case 0:
		s.fields["id"] = NewFieldDefinition(IdIntType())
		s.idField = "id"
		s.idKind = document.IDInt
		return nil
	case 1:
		s.idField = found[0].name
		s.idKind = found[0].kind
		return nil
	default:
		return ErrMultipleIDFields
	}
}

// IDField returns the schema's id field name.
func (s *Schema) IDField() string { return s.idField }

// IDKind returns the schema's id field's kind (document.IDInt or document.IDString).
func (s *Schema) IDKind() document.IDKind { return s.idKind }

// HasField reports whether name is declared in the schema.
func (s *Schema) HasField(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Field returns the definition for name.
func (s *Schema) Field(name string) (FieldDefinition, bool) {
	def, ok := s.fields[name]
	return def, ok
}

// Fields returns a copy of the schema's field map.
func (s *Schema) Fields() map[string]FieldDefinition {
	out := make(map[string]FieldDefinition, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// FieldNames returns the schema's field names in sorted order, for callers
// that need a deterministic iteration order (serialization, tests).
func (s *Schema) FieldNames() []string {
	out := make([]string, 0, len(s.fields))
	for k := range s.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AddField adds a new field to the schema. It forbids a duplicate name and
// a second id-typed field. Whether an existing collection of documents
// permits this (a non-Nullable field with no default rejected when the
// collection is non-empty) is the collection layer's concern, not the
// schema's.
func (s *Schema) AddField(name string, def FieldDefinition) error {
	if s.HasField(name) {
		return fmt.Errorf("%w: %q", ErrFieldExists, name)
	}
	if err := def.Type.Validate(); err != nil {
		return fmt.Errorf("schema: field %q: %w", name, err)
	}
	if def.Type.IsID() {
		return fmt.Errorf("%w: %q", ErrSecondIDField, name)
	}
	s.fields[name] = def
	return nil
}

// SetField unconditionally installs def under name, without the
// duplicate-name or second-id-field checks AddField enforces. It exists
// for the collection layer's schema-evolution steps that synthesize a
// replacement id field (RemoveField/ModifyField on the existing id field):
// those callers are responsible for following up with SetIDField.
func (s *Schema) SetField(name string, def FieldDefinition) error {
	if err := def.Type.Validate(); err != nil {
		return fmt.Errorf("schema: field %q: %w", name, err)
	}
	s.fields[name] = def
	return nil
}

// RemoveField removes name from the schema and returns its definition.
func (s *Schema) RemoveField(name string) (FieldDefinition, error) {
	def, ok := s.fields[name]
	if !ok {
		return FieldDefinition{}, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	delete(s.fields, name)
	return def, nil
}

// ReplaceField overwrites the definition for an existing field name,
// without altering the schema's notion of which field is the id field;
// callers that change a field's id-ness must also call SetIDField.
func (s *Schema) ReplaceField(name string, def FieldDefinition) error {
	if !s.HasField(name) {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	if err := def.Type.Validate(); err != nil {
		return fmt.Errorf("schema: field %q: %w", name, err)
	}
	s.fields[name] = def
	return nil
}

// RenameField moves the definition at old to new, forbidding collisions.
// If old was the id field, new becomes the id field.
func (s *Schema) RenameField(old, new string) error {
	if old == new {
		return nil
	}
	def, ok := s.fields[old]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, old)
	}
	if s.HasField(new) {
		return fmt.Errorf("%w: %q", ErrFieldExists, new)
	}
	delete(s.fields, old)
	s.fields[new] = def
	if s.idField == old {
		s.idField = new
	}
	return nil
}

// SetIDField directly sets which field is the schema's id field and its
// kind, for use by the collection layer after a schema-evolution step that
// changes or replaces the id field (see collection.ModifyField/RemoveField).
func (s *Schema) SetIDField(name string, kind document.IDKind) {
	s.idField = name
	s.idKind = kind
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	out := &Schema{
		fields:  make(map[string]FieldDefinition, len(s.fields)),
		idField: s.idField,
		idKind:  s.idKind,
	}
	for k, v := range s.fields {
		out.fields[k] = v
	}
	return out
}
