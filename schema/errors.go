package schema

import "errors"

var (
	// ErrMultipleIDFields reports a schema declaring more than one
	// IdString/IdInt field.
	ErrMultipleIDFields = errors.New("schema: must contain at most one field with type IdString or IdInt")

	// ErrFieldExists reports an attempt to add or rename a field onto a
	// name already present in the schema.
	ErrFieldExists = errors.New("schema: field already exists")

	// ErrFieldNotFound reports an operation on a field name absent from
	// the schema.
	ErrFieldNotFound = errors.New("schema: field not found")

	// ErrSecondIDField reports an attempt to add a second id-typed field.
	ErrSecondIDField = errors.New("schema: a second id field is not allowed")
)
