package answer

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/retriever"
)

// styles holds the teaching style for each level.
var styles = map[learner.Level]string{
	learner.LevelBeginner: `The learner is a BEGINNER.
- Explain with everyday analogies (a row of mailboxes, a stack of plates, a queue at a ticket counter).
- Use plain words and short sentences. Define every term the first time you use it.
- Do not mention Big-O notation or complexity classes.
- Show code only if asked, and keep it very short.`,
	learner.LevelIntermediate: `The learner is INTERMEDIATE.
- Give precise definitions and walk through how the idea works step by step.
- Include basic time and space complexity in Big-O notation.
- Include a short, idiomatic code example when it helps.`,
	learner.LevelAdvanced: `The learner is ADVANCED.
- Be concise and rigorous. Skip basics they already know.
- Discuss trade-offs against alternatives, optimisations, edge cases and amortised or worst-case behaviour.
- Mention practical and system-level considerations such as cache behaviour, memory layout or concurrency where relevant.`,
}

func style(level learner.Level) string {
	if s, ok := styles[level]; ok {
		return s
	}
	return styles[learner.LevelIntermediate]
}

type promptData struct {
	Style    string
	Grounded bool
	Fallback bool
}

var systemTemplate = template.Must(template.New("answer").Parse(`You are a patient Data Structures and Algorithms tutor.

{{.Style}}

Rules:
- Stay within Data Structures and Algorithms. Politely decline anything else.
- Teach one concept at a time. Do not pile on related topics the learner did not ask about.
{{- if .Grounded}}
- Base your answer on the reference passages provided with the question. Say so when you use them, e.g. "According to the reference material...".
- If the passages do not cover part of the question, say that you are adding general knowledge for that part.
{{- else if .Fallback}}
- No reference material was found for this question. Answer from general knowledge and do not claim any source.
{{- else}}
- Answer from general knowledge.
{{- end}}
- Do not repeat explanations already given in the conversation. For follow-ups like "show it in Java" or "what's the complexity?", answer only what is new.
- End with a short question that checks understanding or invites the next step.`))

const conversePrompt = `You are a warm, encouraging Data Structures and Algorithms tutor. The learner sent a greeting, thanks or other small talk.
Reply briefly and kindly in one or two sentences, then invite them to ask a DSA question or continue the current topic. Do not start teaching unprompted.`

func buildSystem(level learner.Level, mode Mode) string {
	var buf bytes.Buffer
	_ = systemTemplate.Execute(&buf, promptData{
		Style:    style(level),
		Grounded: mode == ModeGrounded,
		Fallback: mode == ModeFallback,
	})
	return buf.String()
}

var questionTemplate = template.Must(template.New("question").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`Reference passages:
{{range $i, $p := .Passages}}
[{{inc $i}}] (source: {{$p.SourceID}})
{{$p.Text}}
{{end}}
Question: {{.Question}}`))

func buildGroundedQuestion(question string, passages []retriever.Passage) string {
	var buf bytes.Buffer
	_ = questionTemplate.Execute(&buf, struct {
		Question string
		Passages []retriever.Passage
	}{question, passages})
	return strings.TrimSpace(buf.String())
}
