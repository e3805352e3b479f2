package remote

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// reviewResponseSchema constrains the authoritative scheduler's response
// before any field is trusted for reconciliation.
const reviewResponseSchema = `{
	"type": "object",
	"required": ["success"],
	"properties": {
		"success": {"type": "boolean"},
		"data": {
			"type": "object",
			"required": ["nextState"],
			"properties": {
				"nextState": {
					"type": "object",
					"required": ["stability", "difficulty", "phase", "due"],
					"properties": {
						"stability": {"type": "number", "exclusiveMinimum": 0},
						"difficulty": {"type": "number", "minimum": 0},
						"phase": {"type": "string", "enum": ["new", "learning", "review", "relearning"]},
						"due": {"type": "string"}
					}
				}
			}
		},
		"error": {"type": "string"}
	}
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// validateReviewResponse validates raw JSON against the response schema.
func validateReviewResponse(raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidResponse, err)
	}

	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		def, err := jsonschema.UnmarshalJSON(strings.NewReader(reviewResponseSchema))
		if err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		if err := c.AddResource("schema://review-response.json", def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("schema://review-response.json")
	})
	if compileErr != nil {
		return fmt.Errorf("compile response schema: %w", compileErr)
	}

	if err := compiledSchema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
