package schema

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"lumendb/document"
)

// ValidationErrors collects the per-field errors produced by Validate.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "schema: document is valid"
	}
	msg := v[0].Error()
	for _, e := range v[1:] {
		msg += "; " + e.Error()
	}
	return msg
}

// Validate checks doc against the schema: every field is either present
// with a value matching its FieldType, or absent and permitted to be
// (Id-typed or Nullable fields may be missing; a missing Nullable field is
// treated as an implicit null). Returns nil if doc is valid.
func (s *Schema) Validate(doc document.Document) error {
	var errs ValidationErrors
	for name, def := range s.fields {
		value, ok := doc.Get(name)
		if !ok {
			if def.Type.IsID() || def.Type.Kind == Nullable {
				continue
			}
			errs = append(errs, fmt.Errorf("missing field: %q", name))
			continue
		}
		if err := validateBSONType(value, def.Type); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ApplyDefaults inserts the declared default for every schema field that is
// absent from doc, skipping Id and Nullable fields entirely (a missing
// Nullable field is implicitly null, never materialized by ApplyDefaults).
// Returns the number of fields defaulted.
func (s *Schema) ApplyDefaults(doc *document.Document) int {
	applied := 0
	for name, def := range s.fields {
		if _, ok := doc.Get(name); ok {
			continue
		}
		if def.Type.IsID() || def.Type.Kind == Nullable {
			continue
		}
		if def.HasDefault {
			doc.Set(name, def.Default)
			applied++
		}
	}
	return applied
}

// validateBSONType checks that value's dynamic BSON type matches t.
func validateBSONType(value any, t FieldType) error {
	switch t.Kind {
	case Int:
		switch value.(type) {
		case int32, int64:
			return nil
		default:
			return fmt.Errorf("expected int")
		}
	case Float:
		if _, ok := value.(float64); ok {
			return nil
		}
		return fmt.Errorf("expected float")
	case Boolean:
		if _, ok := value.(bool); ok {
			return nil
		}
		return fmt.Errorf("expected boolean")
	case String:
		if _, ok := value.(string); ok {
			return nil
		}
		return fmt.Errorf("expected string")
	case Array:
		arr, ok := value.(bson.A)
		if !ok {
			return fmt.Errorf("expected array")
		}
		for i, elem := range arr {
			if err := validateBSONType(elem, *t.Elem); err != nil {
				return fmt.Errorf("array element %d: %w", i, err)
			}
		}
		return nil
	case Reference:
		if value == nil {
			return nil
		}
		if _, ok := value.(string); ok {
			return nil
		}
		return fmt.Errorf("expected reference (string or null)")
	case Nullable:
		if value == nil {
			return nil
		}
		return validateBSONType(value, *t.Elem)
	case IdString:
		if _, ok := value.(string); ok {
			return nil
		}
		return fmt.Errorf("expected id as string")
	case IdInt:
		switch value.(type) {
		case int32, int64:
			return nil
		default:
			return fmt.Errorf("expected id as integer")
		}
	default:
		return fmt.Errorf("unknown field type %v", t.Kind)
	}
}
