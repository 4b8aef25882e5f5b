// Package schema implements the field-type model, validation, and default
// application used by the collection layer to enforce document shape.
package schema

import "fmt"

// Kind is the discriminant of the FieldType tagged union.
type Kind uint8

const (
	Int Kind = iota
	Float
	Boolean
	String
	IdString
	IdInt
	Array
	Reference
	Nullable
)

func (k Kind) String() string {
	switch k {
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
		return "array"
	case Reference:
		return "reference"
	case Nullable:
		return "nullable"
	default:
		return "unknown"
	}
}

// FieldType is a recursive tagged variant: Int, Float, Boolean, String,
// IdString, IdInt, Array(Elem), Reference(RefCollection), Nullable(Elem).
// Elem and RefCollection are only meaningful for the composite kinds.
type FieldType struct {
	Kind          Kind
	Elem          *FieldType
	RefCollection string
}

func IntType() FieldType     { return FieldType{Kind: Int} }
func FloatType() FieldType   { return FieldType{Kind: Float} }
func BoolType() FieldType    { return FieldType{Kind: Boolean} }
func StringType() FieldType  { return FieldType{Kind: String} }
func IdStringType() FieldType { return FieldType{Kind: IdString} }
func IdIntType() FieldType   { return FieldType{Kind: IdInt} }

func ArrayType(elem FieldType) FieldType {
	return FieldType{Kind: Array, Elem: &elem}
}

func ReferenceType(collection string) FieldType {
	return FieldType{Kind: Reference, RefCollection: collection}
}

func NullableType(elem FieldType) FieldType {
	return FieldType{Kind: Nullable, Elem: &elem}
}

// IsID reports whether t is IdString or IdInt.
func (t FieldType) IsID() bool {
	return t.Kind == IdString || t.Kind == IdInt
}

// Validate checks t's structural constraints: an Id variant may appear only
// at the top level (never inside Array/Nullable), and Nullable may not
// nest another Nullable.
func (t FieldType) Validate() error {
	return t.validate(true)
}

func (t FieldType) validate(topLevel bool) error {
	if t.IsID() && !topLevel {
		return fmt.Errorf("schema: %s may only appear at the top level of a field type", t.Kind)
	}
	switch t.Kind {
	case Array:
		if t.Elem == nil {
			return fmt.Errorf("schema: array field type missing element type")
		}
		if t.Elem.IsID() {
			return fmt.Errorf("schema: array element type may not be an id type")
		}
		return t.Elem.validate(false)
	case Nullable:
		if t.Elem == nil {
			return fmt.Errorf("schema: nullable field type missing element type")
		}
		if t.Elem.Kind == Nullable {
			return fmt.Errorf("schema: nullable may not nest another nullable")
		}
		if t.Elem.IsID() {
			return fmt.Errorf("schema: nullable element type may not be an id type")
		}
		return t.Elem.validate(false)
	case Reference:
		if t.RefCollection == "" {
			return fmt.Errorf("schema: reference field type missing collection name")
		}
		return nil
	default:
		return nil
	}
}

// Equal reports structural equality between two FieldTypes.
func (t FieldType) Equal(other FieldType) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Array, Nullable:
		if t.Elem == nil || other.Elem == nil {
			return t.Elem == other.Elem
		}
		return t.Elem.Equal(*other.Elem)
	case Reference:
		return t.RefCollection == other.RefCollection
	default:
		return true
	}
}
