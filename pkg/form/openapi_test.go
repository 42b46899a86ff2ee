package form_test

import (
	"testing"

	"github.com/goliatone/go-mailmerge/pkg/form"
)

func TestOpenAPI_Descriptor(t *testing.T) {
	schema := form.MustSchema([]string{"company", "date"})
	doc := schema.OpenAPI()

	valid := map[string]any{
		"forms": []any{
			map[string]any{
				"email":     "a@b.com",
				"variables": map[string]any{"company": "Acme", "date": "today"},
			},
		},
	}
	if err := doc.VisitJSON(valid); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	cases := map[string]map[string]any{
		"missing variable": {
			"forms": []any{
				map[string]any{
					"email":     "a@b.com",
					"variables": map[string]any{"company": "Acme"},
				},
			},
		},
		"unknown variable": {
			"forms": []any{
				map[string]any{
					"email":     "a@b.com",
					"variables": map[string]any{"company": "Acme", "date": "x", "extra": "y"},
				},
			},
		},
		"empty collection": {"forms": []any{}},
		"missing forms":    {},
	}

	for name, payload := range cases {
		if err := doc.VisitJSON(payload); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestEntryOpenAPI_RequiredFields(t *testing.T) {
	schema := form.MustSchema([]string{"company"})
	entry := schema.EntryOpenAPI()

	if len(entry.Required) != 2 {
		t.Fatalf("expected email and variables required, got %v", entry.Required)
	}
	variables := entry.Properties[form.FieldVariables]
	if variables == nil || variables.Value == nil {
		t.Fatalf("expected variables property")
	}
	if len(variables.Value.Required) != 1 || variables.Value.Required[0] != "company" {
		t.Fatalf("expected company required, got %v", variables.Value.Required)
	}
}
