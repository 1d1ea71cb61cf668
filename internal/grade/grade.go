// Package grade scores retrieved passages and rewrites queries whose
// passages were not good enough.
package grade

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/retriever"
)

// Verdict is the grader's recommendation.
type Verdict string

const (
	VerdictGenerate Verdict = "GENERATE"
	VerdictRewrite  Verdict = "REWRITE"
)

// Scores are the grader's per-axis marks, 1-10.
type Scores struct {
	Relevance           int `json:"relevance"`
	Completeness        int `json:"completeness"`
	TechnicalAccuracy   int `json:"technical_accuracy"`
	DSAlgorithmCoverage int `json:"ds_algorithm_coverage"`
}

// Grade is the outcome of grading one retrieval.
type Grade struct {
	Scores    Scores
	Verdict   Verdict
	Reasoning string
}

type gradeOutput struct {
	Scores    Scores `json:"scores"`
	Verdict   string `json:"verdict"`
	Reasoning string `json:"reasoning"`
}

// Grader asks the model whether retrieved passages can answer a question.
type Grader struct {
	provider llm.Provider
	log      *zap.Logger
}

// NewGrader creates a Grader.
func NewGrader(provider llm.Provider, log *zap.Logger) *Grader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Grader{provider: provider, log: log.Named("grade")}
}

// Grade scores passages against question. A verdict other than GENERATE
// or REWRITE, or a reply that cannot be parsed, proceeds to GENERATE.
// Only an unavailable model is an error.
func (g *Grader) Grade(ctx context.Context, question string, passages []retriever.Passage) (*Grade, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeGrade)

	var out gradeOutput
	err := llm.Object(ctx, g.provider, llm.Request{
		System:    graderPrompt,
		Messages:  []llm.Message{llm.UserMessage(buildGradeMessage(question, passages))},
		Schema:    GradeSchema,
		MaxTokens: 300,
	}, &out)
	if llm.IsInvalid(err) {
		g.log.Warn("grader reply unparseable, generating anyway", zap.Error(err))
		return &Grade{Verdict: VerdictGenerate}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("grade passages: %w", err)
	}

	verdict := Verdict(strings.ToUpper(strings.TrimSpace(out.Verdict)))
	if verdict != VerdictGenerate && verdict != VerdictRewrite {
		g.log.Debug("unknown grader verdict, generating", zap.String("verdict", out.Verdict))
		verdict = VerdictGenerate
	}
	return &Grade{Scores: out.Scores, Verdict: verdict, Reasoning: out.Reasoning}, nil
}

func buildGradeMessage(question string, passages []retriever.Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nRetrieved passages:\n", question)
	for i, p := range passages {
		fmt.Fprintf(&b, "\n[%d] (source: %s)\n%s\n", i+1, p.SourceID, p.Text)
	}
	return b.String()
}

// Rewriter expands a query for a second retrieval attempt.
type Rewriter struct {
	provider llm.Provider
	log      *zap.Logger
}

// NewRewriter creates a Rewriter.
func NewRewriter(provider llm.Provider, log *zap.Logger) *Rewriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{provider: provider, log: log.Named("rewrite")}
}

// Rewrite returns an expanded search query. On an empty reply the original
// query is returned; an unavailable model is an error.
func (r *Rewriter) Rewrite(ctx context.Context, query string) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeRewrite)
	out, err := llm.Text(ctx, r.provider, llm.Request{
		System:    rewritePrompt,
		Messages:  []llm.Message{llm.UserMessage(query)},
		MaxTokens: 120,
	})
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if line = strings.Trim(strings.TrimSpace(line), "\"'"); line != "" {
			return line, nil
		}
	}
	return query, nil
}
