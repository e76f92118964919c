package llm

// BuildPrescriptionJSONSchema returns a JSON-Schema (draft 2020-12 subset) as
// a generic map. Optional fields are loose, the agent projects them
// field-by-field afterwards. A missing medications array or a nameless
// medication is a hard violation.
func BuildPrescriptionJSONSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":         map[string]any{"type": "string", "minLength": 1},
			"dosage":       nullableString,
			"frequency":    nullableString,
			"start_date":   nullableString,
			"duration":     nullableString,
			"instructions": nullableString,
			// the model is asked for an integer but sometimes returns a
			// numeric string; both pass, projection normalizes.
			"page_number": map[string]any{"type": []string{"integer", "string", "null"}},
		},
		"required": []string{"name"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"medications": map[string]any{
				"type":  "array",
				"items": item,
			},
		},
		"required": []string{"medications"},
	}
}
