package prompt

import "encoding/json"

// ExtractionSchema is the JSON schema for the extraction envelope,
// used when the backend supports constrained structured output and
// UseSchemaConstraints is enabled.
var ExtractionSchema = map[string]any{
	"name":   "entity_extraction",
	"strict": true,
	"schema": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"extractions": map[string]any{
				"type":        "array",
				"description": "All extracted entities in order of appearance",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"extraction_class": map[string]any{
							"type":        "string",
							"description": "One of the allowed classes",
						},
						"extraction_text": map[string]any{
							"type":        "string",
							"description": "Exact verbatim substring of the passage",
						},
						"attributes": map[string]any{
							"type":                 "object",
							"description":          "Flat string key-value attributes",
							"additionalProperties": map[string]any{"type": "string"},
						},
					},
					"required":             []string{"extraction_class", "extraction_text"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"extractions"},
		"additionalProperties": false,
	},
}

// ExtractionSchemaJSON returns the schema serialized for providers
// that take a raw JSON schema document.
func ExtractionSchemaJSON() json.RawMessage {
	data, err := json.Marshal(ExtractionSchema)
	if err != nil {
		// The schema is a static literal; marshaling cannot fail at
		// runtime unless the literal itself is broken.
		panic(err)
	}
	return data
}
