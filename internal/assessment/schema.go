package assessment

import "github.com/abhisek/dsatutor/internal/llm"

// EnvelopeSchema is the reply shape of every questionnaire turn.
var EnvelopeSchema = &llm.Schema{
	Name:        "assessment-envelope",
	Description: "One turn of the DSA self-assessment questionnaire",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The text shown to the learner",
			},
			"data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_level": map[string]any{
						"type":        []any{"string", "null"},
						"enum":        []any{"beginner", "intermediate", "advanced", nil},
						"description": "The assigned level once all three ratings are known, otherwise null",
					},
				},
				"required":             []any{"user_level"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"message", "data"},
		"additionalProperties": false,
	},
}
