package llm

import "context"

// Purpose names the pipeline stage behind an LLM call. It is stored with
// every recorded request and drives `dsatutor llm stats`.
type Purpose string

const (
	PurposeAssessment        Purpose = "assessment"
	PurposeClassifyLanguage  Purpose = "classify-language"
	PurposeClassifyContent   Purpose = "classify-content"
	PurposeClassifyRetrieval Purpose = "classify-retrieval"
	PurposeReformulate       Purpose = "reformulate"
	PurposeGrade             Purpose = "grade"
	PurposeRewrite           Purpose = "rewrite"
	PurposeAnswer            Purpose = "answer"
	PurposeDocumentValidate  Purpose = "document-validate"
	PurposeDocumentAnswer    Purpose = "document-answer"
	PurposeProficiency       Purpose = "proficiency"
	PurposeRecommend         Purpose = "recommend"
)

type ctxKey int

const (
	purposeKey ctxKey = iota
	learnerKey
)

// WithPurpose tags LLM calls made with ctx. A suffix narrows the stage,
// e.g. WithPurpose(ctx, PurposeAnswer, "grounded") records "answer-grounded".
func WithPurpose(ctx context.Context, p Purpose, suffix ...string) context.Context {
	s := string(p)
	for _, x := range suffix {
		if x != "" {
			s += "-" + x
		}
	}
	return context.WithValue(ctx, purposeKey, s)
}

// PurposeFrom returns the purpose tag, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithLearner tags LLM calls made with ctx with the learner they serve, so
// the calls of one turn can be found in the logs.
func WithLearner(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, learnerKey, userID)
}

// LearnerFrom returns the learner tag, or "" when unset.
func LearnerFrom(ctx context.Context) string {
	v, _ := ctx.Value(learnerKey).(string)
	return v
}
