package form

import "github.com/getkin/kin-openapi/openapi3"

// EntryOpenAPI describes a single entry as an OpenAPI schema: a required
// email plus a closed variables object with one required, non-empty string
// per placeholder.
func (s *Schema) EntryOpenAPI() *openapi3.Schema {
	variables := openapi3.NewObjectSchema().WithoutAdditionalProperties()
	for _, name := range s.names {
		variables.WithProperty(name, openapi3.NewStringSchema().WithMinLength(1))
	}
	variables.WithRequired(s.Names())

	entry := openapi3.NewObjectSchema().
		WithProperty(FieldEmail, openapi3.NewStringSchema().WithFormat("email").WithMinLength(1)).
		WithProperty(FieldVariables, variables).
		WithRequired([]string{FieldEmail, FieldVariables})
	return entry
}

// OpenAPI describes the submitted collection (`{"forms": [...]}`) with at
// least one entry.
func (s *Schema) OpenAPI() *openapi3.Schema {
	forms := openapi3.NewArraySchema().WithItems(s.EntryOpenAPI()).WithMinItems(1)
	return openapi3.NewObjectSchema().
		WithProperty("forms", forms).
		WithRequired([]string{"forms"})
}
