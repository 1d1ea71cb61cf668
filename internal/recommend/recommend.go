// Package recommend suggests what a learner could study next.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

// DefaultCount is how many recommendations are requested.
const DefaultCount = 5

// Recommendation is one suggested topic.
type Recommendation struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Difficulty  string `json:"difficulty"`
}

type recommendOutput struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommender asks the model for next topics.
type Recommender struct {
	provider    llm.Provider
	count       int
	temperature float64
	log         *zap.Logger
}

// New creates a Recommender returning up to count items. A count of zero
// uses DefaultCount.
func New(provider llm.Provider, count int, log *zap.Logger) *Recommender {
	if count <= 0 {
		count = DefaultCount
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recommender{provider: provider, count: count, temperature: 0.7, log: log.Named("recommend")}
}

// Recommend returns up to the configured number of topics for a learner at
// level who has covered topics.
func (r *Recommender) Recommend(ctx context.Context, level learner.Level, topics learner.Topics) ([]Recommendation, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeRecommend)

	if topics == nil {
		topics = learner.Topics{}
	}
	covered, _ := json.Marshal(topics)

	var out recommendOutput
	err := llm.Object(ctx, r.provider, llm.Request{
		System: fmt.Sprintf(systemPrompt, r.count),
		Messages: []llm.Message{llm.UserMessage(fmt.Sprintf(
			"Level: %s\nTopics already covered: %s", level, covered))},
		Schema:      Schema,
		MaxTokens:   1000,
		Temperature: r.temperature,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("recommend topics: %w", err)
	}

	recs := make([]Recommendation, 0, r.count)
	for _, rec := range out.Recommendations {
		if strings.TrimSpace(rec.Topic) == "" {
			continue
		}
		recs = append(recs, rec)
		if len(recs) == r.count {
			break
		}
	}
	return recs, nil
}

// Schema is the recommender's reply shape.
var Schema = &llm.Schema{
	Name:        "recommendations",
	Description: "Topics the learner should study next",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recommendations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"topic":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"rationale":   map[string]any{"type": "string"},
						"difficulty": map[string]any{
							"type": "string",
							"enum": []any{"beginner", "intermediate", "advanced"},
						},
					},
					"required":             []any{"topic", "description", "rationale", "difficulty"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"recommendations"},
		"additionalProperties": false,
	},
}

const systemPrompt = `You plan study paths for a Data Structures and Algorithms learner.
Suggest up to %d topics the learner has not covered yet that build on what they know and suit their level. Order them from most to least useful next step. For each, give a one-sentence description, a one-sentence rationale tied to what they have covered, and a difficulty.`
