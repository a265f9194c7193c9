package concepts

import "github.com/abhisek/socratic/internal/llm"

// AnalysisSchema defines the JSON schema for concept extraction.
var AnalysisSchema = &llm.Schema{
	Name:        "concept-analysis",
	Description: "Key concepts of a study text with their relations and examples",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"concepts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": map[string]any{
							"type":        "string",
							"description": "Unique id: concept_1, concept_2, ...",
						},
						"name": map[string]any{
							"type":        "string",
							"description": "Concept name (1-5 words)",
						},
						"definition": map[string]any{
							"type":        "string",
							"description": "Short definition in 1-2 sentences",
						},
						"complexity": map[string]any{
							"type":    "integer",
							"minimum": 1,
							"maximum": 5,
						},
						"sourceSection": map[string]any{
							"type":        "string",
							"description": "Section of the text the concept appears in",
						},
					},
					"required":             []any{"id", "name", "definition", "complexity", "sourceSection"},
					"additionalProperties": false,
				},
			},
			"relations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"from": map[string]any{"type": "string"},
						"to":   map[string]any{"type": "string"},
						"type": map[string]any{
							"type": "string",
							"enum": []any{"is_example_of", "leads_to", "contrasts_with", "is_part_of"},
						},
					},
					"required":             []any{"from", "to", "type"},
					"additionalProperties": false,
				},
			},
			"examples": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"concept": map[string]any{"type": "string"},
						"example": map[string]any{"type": "string"},
					},
					"required":             []any{"concept", "example"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"concepts", "relations", "examples"},
		"additionalProperties": false,
	},
}
