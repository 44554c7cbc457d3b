// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"sort"
	"strings"

	"psychosocial-workers/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// AnswersSchema accepts question ids q1..qN mapped to numbers on the 1..5 scale.
var AnswersSchema = map[string]interface{}{
	"type": "object",
	"patternProperties": map[string]interface{}{
		"^q[1-9][0-9]*$": map[string]interface{}{
			"type":    "number",
			"minimum": 1,
			"maximum": 5,
		},
	},
	"additionalProperties": false,
}

// EnqueueSchema describes the enqueue-assessment-processing job variables.
var EnqueueSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"assessmentResponseId"},
	"properties": map[string]interface{}{
		"assessmentResponseId": map[string]interface{}{"type": "string", "minLength": 1},
		"companyId":            map[string]interface{}{"type": "string"},
		"priority": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"", "low", "medium", "high", "critical"},
		},
	},
}

// Validate checks document against schema and returns a VALIDATION_FAILED
// StandardError listing every violation.
func Validate(schema map[string]interface{}, document interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("schema validation error: %v", err))
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		sort.Strings(errs)
		return errors.NewValidationError(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateAnswers rejects nil payloads, unknown keys and out-of-scale values.
func ValidateAnswers(answers map[string]float64) error {
	if answers == nil {
		return errors.NewValidationError("answers payload is missing")
	}
	doc := make(map[string]interface{}, len(answers))
	for k, v := range answers {
		doc[k] = v
	}
	return Validate(AnswersSchema, doc)
}
