package document

import (
	"fmt"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

// VerdictSchema is the validator's reply shape.
var VerdictSchema = &llm.Schema{
	Name:        "document-verdict",
	Description: "Whether an uploaded image or PDF contains Data Structures and Algorithms content",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"classification": map[string]any{
				"type": "string",
				"enum": []any{string(HighConfidence), string(LowConfidence), string(NoDSAContent)},
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "One sentence naming what was found",
			},
		},
		"required":             []any{"classification", "reason"},
		"additionalProperties": false,
	},
}

const validatorPrompt = `You check material a learner uploaded to a Data Structures and Algorithms tutor.

Classify it:
- DSA_CONTENT_HIGH_CONFIDENCE: clearly shows data structures, algorithms, complexity analysis, pseudocode or code implementing them, or diagrams of trees, graphs, arrays and the like.
- DSA_CONTENT_LOW_CONFIDENCE: might be related (general code, math, a blurry or partial diagram) but you cannot tell what DSA concept it is about.
- NO_DSA_CONTENT: unrelated to DSA, such as photos, memes, recipes or essays on other subjects.`

// RedirectMessage answers uploads without DSA content.
const RedirectMessage = "Thanks for sharing! I couldn't find any data structures or algorithms content in that upload, so I'm not the right tutor for it. If you have notes, diagrams or code about a DSA topic, send them over, or just ask me a DSA question."

// ClarifyMessage asks what the learner wants explained about an unclear
// upload.
func ClarifyMessage(in Input) string {
	what := "this upload"
	switch {
	case len(in.Images) > 0 && in.PDFText != "":
		what = "these files"
	case len(in.Images) > 0:
		what = "this image"
	case in.PDFText != "":
		what = "this PDF"
	}
	return fmt.Sprintf("I'm not quite sure which data structures or algorithms concept %s is about. Could you tell me what you'd like me to explain, for example the structure shown or the algorithm in the code?", what)
}

var explainStyles = map[learner.Level]string{
	learner.LevelBeginner:     "The learner is a beginner: use everyday analogies and plain words, define every term, and do not use Big-O notation.",
	learner.LevelIntermediate: "The learner is intermediate: explain how it works step by step and include basic time and space complexity.",
	learner.LevelAdvanced:     "The learner is advanced: be concise and rigorous, and discuss trade-offs, optimisations and edge cases.",
}

func buildExplainPrompt(level learner.Level, hasPDF bool) string {
	st, ok := explainStyles[level]
	if !ok {
		st = explainStyles[learner.LevelIntermediate]
	}
	format := "Reply conversationally in a few short paragraphs, as if talking the learner through the picture."
	if hasPDF {
		format = "Organise the reply with short subheadings for each concept you cover. Quote the document sparingly."
	}
	return fmt.Sprintf(`You are a patient Data Structures and Algorithms tutor. The learner uploaded material and wants it explained.

%s

Explain the DSA concepts visible in the material, using both the images and the document text when present. If the learner asked something specific, answer that first. Stay within DSA and do not repeat explanations already given in the conversation.

%s`, st, format)
}
