package schema

// FieldDefinition pairs a FieldType with an optional default BSON value.
type FieldDefinition struct {
	Type       FieldType
	Default    any
	HasDefault bool
}

// NewFieldDefinition returns a field definition with no default.
func NewFieldDefinition(t FieldType) FieldDefinition {
	return FieldDefinition{Type: t}
}

// WithDefault returns a copy of def carrying the given default value.
func (def FieldDefinition) WithDefault(value any) FieldDefinition {
	def.Default = value
	def.HasDefault = true
	return def
}
