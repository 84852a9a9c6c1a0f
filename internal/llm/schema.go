package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildSummaryRecordSchema describes one entry of the "summary" array.
// It is shown to the model and used locally to drop ill-typed records.
func BuildSummaryRecordSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"form":        map[string]any{"type": []string{"string", "number"}},
			"code":        map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": []string{"string", "null"}},
			"amount":      map[string]any{"type": []string{"number", "string", "null"}},
		},
		"required": []string{"form", "code"},
	}
}

// CompileSchema compiles schemaMap once so it can validate many documents.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
