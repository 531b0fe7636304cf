package models

// FieldType is the declared type of a definition field.
type FieldType string

const (
	FieldString FieldType = "str"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
	FieldDict   FieldType = "dict"
	FieldList   FieldType = "list"
)

// DefinitionField describes one key of metadata contents.
type DefinitionField struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// MetadataDefinition is a named schema that metadata contents can be
// validated against.
type MetadataDefinition struct {
	ID          string
	Name        string
	Description string
	Fields      []DefinitionField
}
