package schema

import (
	"go.mongodb.org/mongo-driver/bson"

	"lumendb/document"
)

// ToDocument serializes the schema as a document.Document mirroring §6: a
// field with no default maps to its type token (or a composite-type
// sub-document); a field with a default maps to {"type": ..., "default":
// ...}.
func (s *Schema) ToDocument() document.Document {
	doc := document.New()
	for _, name := range s.FieldNames() {
		def := s.fields[name]
		doc.Set(name, fieldDefinitionToBSON(def))
	}
	return doc
}

// FromDocument parses a document.Document produced by ToDocument (or
// decoded fresh off the wire via document.Unmarshal, where nested
// sub-documents arrive as bson.D) back into a Schema. Unrecognized field
// definitions are skipped, matching the original implementation's
// tolerant parse.
func FromDocument(doc document.Document) (*Schema, error) {
	fields := make(map[string]FieldDefinition)
	for _, name := range doc.Keys() {
		value, _ := doc.Get(name)
		def, ok := parseFieldDefinition(value)
		if !ok {
			continue
		}
		fields[name] = def
	}
	return New(fields)
}

func fieldDefinitionToBSON(def FieldDefinition) any {
	if !def.HasDefault {
		return fieldTypeToBSON(def.Type)
	}
	return bson.D{
		{Key: "type", Value: fieldTypeToBSON(def.Type)},
		{Key: "default", Value: def.Default},
	}
}

func fieldTypeToBSON(t FieldType) any {
	switch t.Kind {
	case Int:
		return "int"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case String:
		return "string"
	case IdString:
		return "id_string"
	case IdInt:
		return "id_int"
	case Array:
		return bson.D{{Key: "array", Value: fieldTypeToBSON(*t.Elem)}}
	case Reference:
		return bson.D{{Key: "reference", Value: t.RefCollection}}
	case Nullable:
		return bson.D{{Key: "nullable", Value: fieldTypeToBSON(*t.Elem)}}
	default:
		return nil
	}
}

func parseFieldDefinition(value any) (FieldDefinition, bool) {
	switch v := value.(type) {
	case string:
		ft, ok := parseFieldType(v)
		if !ok {
			return FieldDefinition{}, false
		}
		return NewFieldDefinition(ft), true
	case bson.D:
		return parseFieldDefinitionDoc(v)
	default:
		return FieldDefinition{}, false
	}
}

func parseFieldDefinitionDoc(doc bson.D) (FieldDefinition, bool) {
	wrapped := document.FromBSON(doc)
	if typeVal, ok := wrapped.Get("type"); ok {
		ft, ok := parseFieldTypeValue(typeVal)
		if !ok {
			return FieldDefinition{}, false
		}
		def := NewFieldDefinition(ft)
		if defaultVal, ok := wrapped.Get("default"); ok {
			def = def.WithDefault(defaultVal)
		}
		return def, true
	}
	ft, ok := parseFieldTypeValue(doc)
	if !ok {
		return FieldDefinition{}, false
	}
	return NewFieldDefinition(ft), true
}

func parseFieldTypeValue(value any) (FieldType, bool) {
	switch v := value.(type) {
	case string:
		return parseFieldType(v)
	case bson.D:
		return parseFieldTypeDoc(v)
	default:
		return FieldType{}, false
	}
}

func parseFieldType(s string) (FieldType, bool) {
	switch s {
	case "int":
		return IntType(), true
	case "float":
		return FloatType(), true
	case "boolean":
		return BoolType(), true
	case "string":
		return StringType(), true
	case "id_string":
		return IdStringType(), true
	case "id_int":
		return IdIntType(), true
	default:
		return FieldType{}, false
	}
}

func parseFieldTypeDoc(doc bson.D) (FieldType, bool) {
	wrapped := document.FromBSON(doc)
	if v, ok := wrapped.Get("array"); ok {
		inner, ok := parseFieldTypeValue(v)
		if !ok {
			return FieldType{}, false
		}
		return ArrayType(inner), true
	}
	if v, ok := wrapped.Get("reference"); ok {
		name, ok := v.(string)
		if !ok {
			return FieldType{}, false
		}
		return ReferenceType(name), true
	}
	if v, ok := wrapped.Get("nullable"); ok {
		inner, ok := parseFieldTypeValue(v)
		if !ok {
			return FieldType{}, false
		}
		return NullableType(inner), true
	}
	return FieldType{}, false
}
