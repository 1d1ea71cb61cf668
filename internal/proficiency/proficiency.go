// Package proficiency re-estimates a learner's level and topic map from the
// conversation so far.
package proficiency

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

// Recommendation is the analyser's suggested level move.
type Recommendation string

const (
	Promote  Recommendation = "Promote"
	Maintain Recommendation = "Maintain"
	Demote   Recommendation = "Demote"
)

// Default confidence thresholds for applying a recommendation.
const (
	DefaultPromoteThreshold = 0.8
	DefaultDemoteThreshold  = 0.9
)

// Assessment is the result of one analysis.
type Assessment struct {
	CurrentLevel   learner.Level
	Recommendation Recommendation
	Confidence     float64
	Topics         learner.Topics
}

type assessmentOutput struct {
	CurrentLevel   string              `json:"current_level"`
	Recommendation string              `json:"recommendation"`
	Confidence     float64             `json:"confidence"`
	Topics         map[string][]string `json:"topics"`
}

// Analyser asks the model for an assessment.
type Analyser struct {
	provider  llm.Provider
	maxTokens int
	log       *zap.Logger
}

// New creates an Analyser.
func New(provider llm.Provider, log *zap.Logger) *Analyser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyser{provider: provider, maxTokens: 1500, log: log.Named("proficiency")}
}

// Analyse assesses the learner from history. The returned topics are the
// normalised union of prior and the model's map. A reply that cannot be
// parsed yields Maintain with the prior topics; an unavailable model is an
// error.
func (a *Analyser) Analyse(ctx context.Context, history []llm.Message, level learner.Level, prior learner.Topics) (*Assessment, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeProficiency)

	var out assessmentOutput
	err := llm.Object(ctx, a.provider, llm.Request{
		System:    systemPrompt,
		Messages:  []llm.Message{llm.UserMessage(buildMessage(history, level, prior))},
		Schema:    AssessmentSchema,
		MaxTokens: a.maxTokens,
	}, &out)
	if llm.IsInvalid(err) {
		a.log.Warn("analysis reply unparseable, maintaining level", zap.Error(err))
		return maintain(level, prior), nil
	}
	if err != nil {
		return nil, fmt.Errorf("analyse proficiency: %w", err)
	}

	rec, ok := parseRecommendation(out.Recommendation)
	if !ok {
		a.log.Warn("unknown recommendation, maintaining level", zap.String("recommendation", out.Recommendation))
		return maintain(level, prior), nil
	}
	cur, ok := learner.ParseLevel(out.CurrentLevel)
	if !ok || !cur.Assessed() {
		cur = level
	}

	return &Assessment{
		CurrentLevel:   cur,
		Recommendation: rec,
		Confidence:     max(0, min(out.Confidence, 1)),
		Topics:         learner.MergeTopics(prior, learner.NormalizeTopics(out.Topics)),
	}, nil
}

func maintain(level learner.Level, prior learner.Topics) *Assessment {
	if prior == nil {
		prior = learner.Topics{}
	}
	return &Assessment{CurrentLevel: level, Recommendation: Maintain, Topics: prior}
}

func parseRecommendation(s string) (Recommendation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "promote":
		return Promote, true
	case "maintain":
		return Maintain, true
	case "demote":
		return Demote, true
	}
	return "", false
}

// Decide returns the level after applying a, and whether it changed.
// Promote needs confidence at least promote, Demote at least demote.
// Levels move a single step.
func Decide(a *Assessment, current learner.Level, promote, demote float64) (learner.Level, bool) {
	if a == nil {
		return current, false
	}
	var next learner.Level
	switch {
	case a.Recommendation == Promote && a.Confidence >= promote:
		next = current.Step(1)
	case a.Recommendation == Demote && a.Confidence >= demote:
		next = current.Step(-1)
	default:
		return current, false
	}
	return next, next != current
}
