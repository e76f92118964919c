package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aurelmarchand/medidocs/internal/common"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
// A mismatch is reported as ErrSchemaViolation with the validator's detail.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: not valid JSON: %v", common.ErrSchemaViolation, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSchemaViolation, err)
	}
	return nil
}

// CleanJSONPayload strips markdown code fences and surrounding whitespace
// from a model response. Models occasionally wrap JSON in ```json fences even
// when told not to.
func CleanJSONPayload(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
