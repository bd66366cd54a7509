package library

import (
	"github.com/renholm/switchboard/internal/schema"
)

// SchemaOrName selects how DefineKernel identifies the operator: a bare
// name whose schema is inferred from the kernel, or an explicit schema.
// The zero value is neither and is rejected.
type SchemaOrName struct {
	name   schema.OperatorName
	schema *schema.Schema
	byName bool
}

// ByName specifies only the operator name; the schema comes from the
// kernel's inferred signature.
func ByName(name schema.OperatorName) SchemaOrName {
	return SchemaOrName{name: name, byName: true}
}

// BySchema specifies the full operator schema.
func BySchema(s *schema.Schema) SchemaOrName {
	return SchemaOrName{schema: s}
}
