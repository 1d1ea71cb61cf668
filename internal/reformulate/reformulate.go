// Package reformulate rewrites a learner turn into a standalone question.
package reformulate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/llm"
)

// MaxHistory is the number of prior messages (five exchanges) the
// reformulator sees.
const MaxHistory = 10

const systemPrompt = `You rewrite the learner's latest message into a standalone, grammatically complete question about Data Structures and Algorithms.

Rules:
- Replace pronouns like "it", "that" or "this one" with what they refer to in the conversation.
- Add any context from the conversation that the question needs to make sense on its own.
- Keep the scope exactly as asked. Never broaden or narrow the question.
- Turn short phrases into natural questions, e.g. "insertion sort" becomes "How does insertion sort work?".
- If the message is already a standalone question, return it unchanged.

Reply with the question only, on one line, with no explanation.`

// Reformulator rewrites questions.
type Reformulator struct {
	provider llm.Provider
	log      *zap.Logger
}

// New creates a Reformulator.
func New(provider llm.Provider, log *zap.Logger) *Reformulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reformulator{provider: provider, log: log.Named("reformulate")}
}

// Reformulate returns the standalone form of question. It never fails the
// turn: an empty reply or a model error yields the original question.
func (r *Reformulator) Reformulate(ctx context.Context, history []llm.Message, question string) string {
	ctx = llm.WithPurpose(ctx, llm.PurposeReformulate)

	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	out, err := llm.Text(ctx, r.provider, llm.Request{
		System:    systemPrompt,
		Messages:  []llm.Message{llm.UserMessage(buildUserMessage(history, question))},
		MaxTokens: 120,
	})
	if err != nil {
		r.log.Warn("reformulation failed, using original question", zap.Error(err))
		return question
	}

	q := normalize(out)
	if q == "" {
		return question
	}
	return q
}

func buildUserMessage(history []llm.Message, question string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, oneLine(m.Content))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Latest message: %s", question)
	return b.String()
}

// normalize keeps the first non-empty line and strips surrounding quotes
// and a "Question:" style prefix.
func normalize(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.Index(line, ":"); i > 0 && i < 25 && strings.Contains(strings.ToLower(line[:i]), "question") {
			line = strings.TrimSpace(line[i+1:])
		}
		return strings.TrimSpace(strings.Trim(line, "\"'`“”"))
	}
	return ""
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}
