package grade

import "github.com/abhisek/dsatutor/internal/llm"

func score(desc string) map[string]any {
	return map[string]any{"type": "integer", "minimum": 1, "maximum": 10, "description": desc}
}

// GradeSchema is the grader's reply shape.
var GradeSchema = &llm.Schema{
	Name:        "retrieval-grade",
	Description: "Quality grade of retrieved passages for a DSA question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scores": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"relevance":             score("How directly the passages address the question"),
					"completeness":          score("Whether the passages hold enough to answer fully"),
					"technical_accuracy":    score("Whether the passages are technically correct"),
					"ds_algorithm_coverage": score("Whether both the data structure and the algorithm side are covered"),
				},
				"required":             []any{"relevance", "completeness", "technical_accuracy", "ds_algorithm_coverage"},
				"additionalProperties": false,
			},
			"verdict": map[string]any{
				"type": "string",
				"enum": []any{"GENERATE", "REWRITE"},
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One sentence explaining the verdict",
			},
		},
		"required":             []any{"scores", "verdict", "reasoning"},
		"additionalProperties": false,
	},
}

const graderPrompt = `You grade passages retrieved from DSA textbooks for a learner's question.

Score each axis from 1 to 10:
- relevance: do the passages address the question?
- completeness: is there enough material to answer it fully?
- technical_accuracy: is the material correct?
- ds_algorithm_coverage: are both the data structure and the algorithm aspects covered where the question needs them?

Recommend GENERATE when the passages are good enough to ground an answer, even if imperfect.
Recommend REWRITE only when they are clearly off-topic or missing the core of the question, so a better search query is needed.`

const rewritePrompt = `You optimise search queries for a Data Structures and Algorithms textbook index.
Rewrite the query so it retrieves better passages: expand abbreviations, name the data structure and the algorithm involved, and add the key technical terms a textbook would use.
Keep the meaning of the original query. Reply with the rewritten query only, on one line.`
