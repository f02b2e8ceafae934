package generation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// draftSchema is the structural contract every accepted draft satisfies.
var draftSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":              map[string]any{"type": "string", "minLength": 1},
		"description":        map[string]any{"type": "string", "minLength": 1},
		"difficulty":         map[string]any{"type": "string", "enum": []any{DifficultyEasy, DifficultyMedium, DifficultyHard}},
		"concept_tags":       map[string]any{"type": "array", "minItems": 1, "items": map[string]any{"type": "string", "minLength": 1}},
		"starter_code":       map[string]any{"type": "string", "minLength": 1},
		"reference_solution": map[string]any{"type": "string", "minLength": 1},
		"test_cases": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input":           map[string]any{"type": "string"},
					"expected_output": map[string]any{"type": "string", "minLength": 1},
					"description":     map[string]any{"type": "string"},
				},
				"required": []any{"input", "expected_output"},
			},
		},
	},
	"required": []any{"title", "description", "difficulty", "concept_tags", "starter_code", "reference_solution", "test_cases"},
}

var (
	compiledOnce    sync.Once
	compiledDraft   *jsonschema.Schema
	compileDraftErr error
)

func compiledDraftSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		// the compiler wants a parsed JSON document
		defBytes, err := json.Marshal(draftSchema)
		if err != nil {
			compileDraftErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileDraftErr = fmt.Errorf("parse schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const url = "schema://exercise-draft.json"
		if err := c.AddResource(url, def); err != nil {
			compileDraftErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledDraft, compileDraftErr = c.Compile(url)
	})
	return compiledDraft, compileDraftErr
}

// validateSchema checks v (any JSON-encodable value) against the draft schema.
func validateSchema(v any) error {
	schema, err := compiledDraftSchema()
	if err != nil {
		return err
	}

	// the validator wants plain JSON values, not structs
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
