package proficiency

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

// AssessmentSchema is the analyser's reply shape.
var AssessmentSchema = &llm.Schema{
	Name:        "proficiency-assessment",
	Description: "An estimate of the learner's DSA level and the topics they have discussed",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"current_level": map[string]any{
				"type": "string",
				"enum": []any{"beginner", "intermediate", "advanced"},
			},
			"recommendation": map[string]any{
				"type": "string",
				"enum": []any{string(Promote), string(Maintain), string(Demote)},
			},
			"confidence": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
			"topics": map[string]any{
				"type":        "object",
				"description": "Parent topic to list of subtopics, snake_case",
				"additionalProperties": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
		},
		"required":             []any{"current_level", "recommendation", "confidence", "topics"},
		"additionalProperties": false,
	},
}

const systemPrompt = `You assess a learner's Data Structures and Algorithms proficiency from their conversation with a tutor.

Judge from the learner's questions and replies:
- beginner: asks what basic structures are, needs analogies, unfamiliar with complexity.
- intermediate: understands common structures and sorting, reasons about Big-O, asks how and why.
- advanced: discusses trade-offs, amortised analysis, graph and DP techniques, optimisations.

Recommend Promote if the learner is consistently above their current level, Demote if consistently below, otherwise Maintain. Set confidence between 0 and 1 to reflect how much evidence there is.

Also return the topics the learner has discussed as a map from parent topic to subtopics:
- keys and values in snake_case
- merge synonyms and singular/plural variants
- each concept appears in only one place
- if a concept could be a parent or a child, make it the parent
- prefer descriptive names (binary_search_trees, not bst)
Start from the existing topic map and add to it.`

func buildMessage(history []llm.Message, level learner.Level, prior learner.Topics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current level: %s\n\n", level)

	if prior == nil {
		prior = learner.Topics{}
	}
	topics, _ := json.Marshal(prior)
	fmt.Fprintf(&b, "Existing topic map: %s\n\nConversation:\n", topics)

	for _, m := range history {
		who := "Learner"
		if m.Role == llm.RoleAssistant {
			who = "Tutor"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, m.Content)
	}
	return b.String()
}
