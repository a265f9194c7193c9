package oracle

import "github.com/abhisek/socratic/internal/llm"

// TurnSchema defines the structured reply to a learner message: the visible
// reply plus the assessment of the learner's last answer.
var TurnSchema = &llm.Schema{
	Name:        "assessment-turn",
	Description: "Tutor reply to the learner and an assessment of the learner's last answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reply": map[string]any{
				"type":        "string",
				"description": "The message shown to the learner. Ends with exactly one question.",
			},
			"assessment": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"questionLevel": map[string]any{
						"type":        "integer",
						"minimum":     1,
						"maximum":     5,
						"description": "Level of the question the learner just answered",
					},
					"answerQuality": map[string]any{
						"type": "string",
						"enum": []any{"correct", "partial", "incorrect", "unclear"},
					},
					"conceptsDemonstrated": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Concept ids the answer showed understanding of",
					},
					"conceptsStruggling": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Concept ids the learner had trouble with",
					},
					"engagementSignal": map[string]any{
						"type": "string",
						"enum": []any{"high", "medium", "low", "declining"},
					},
					"suggestedNextLevel": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": 5,
					},
					"phase": map[string]any{
						"type": "string",
						"enum": []any{"calibration", "exploration", "integration", "closing"},
					},
				},
				"required": []any{
					"questionLevel", "answerQuality", "conceptsDemonstrated",
					"conceptsStruggling", "engagementSignal", "suggestedNextLevel", "phase",
				},
				"additionalProperties": false,
			},
		},
		"required":             []any{"reply", "assessment"},
		"additionalProperties": false,
	},
}

// OpeningSchema defines the first message of a session.
var OpeningSchema = &llm.Schema{
	Name:        "assessment-opening",
	Description: "Welcome message and first question of an assessment conversation",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reply": map[string]any{
				"type":        "string",
				"description": "A short welcome followed by the first question",
			},
		},
		"required":             []any{"reply"},
		"additionalProperties": false,
	},
}

// HistorySummarySchema defines the summary of older transcript messages.
var HistorySummarySchema = &llm.Schema{
	Name:        "history-summary",
	Description: "Summary of the earlier part of an assessment conversation",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "Concepts covered, strengths, struggles and misconceptions so far",
			},
		},
		"required":             []any{"summary"},
		"additionalProperties": false,
	},
}
