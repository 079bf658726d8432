package seed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docrouter/constants"
)

// templatesFileSchema describes the YAML templates file after it has been
// decoded into generic JSON values.
func templatesFileSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"required":             []any{"templates"},
		"additionalProperties": false,
		"properties": map[string]any{
			"templates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"required":             []any{"name", "match_patterns"},
					"additionalProperties": false,
					"properties": map[string]any{
						"name":                 map[string]any{"type": "string", "minLength": 1},
						"enabled":              map[string]any{"type": "boolean"},
						"doc_type":             str,
						"doc_folder":           str,
						"tags":                 map[string]any{"type": "array", "items": str},
						"match_mode":           map[string]any{"enum": toAny(constants.MatchModesAsStringSlice())},
						"match_patterns":       map[string]any{"type": "array", "items": map[string]any{"type": "string", "minLength": 1}},
						"company_regex":        str,
						"invoice_number_regex": str,
						"date_regex":           str,
						"output_path_template": str,
						"filename_template":    str,
					},
				},
			},
		},
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// validateAgainstSchema validates the generic value v against schemaMap.
func validateAgainstSchema(schemaMap map[string]any, v any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("templates.schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("templates.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("templates file does not match schema: %w", err)
	}
	return nil
}
