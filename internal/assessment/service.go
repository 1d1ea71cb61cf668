// Package assessment runs the short self-rating questionnaire that assigns
// a new learner their starting level.
package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

// Envelope is the structured reply of one questionnaire turn.
type Envelope struct {
	Message string       `json:"message"`
	Data    EnvelopeData `json:"data"`
}

// EnvelopeData carries the level once the questionnaire is complete.
type EnvelopeData struct {
	UserLevel *string `json:"user_level"`
}

// JSON returns the envelope in its wire form.
func (e Envelope) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Config holds generation settings.
type Config struct {
	MaxTokens int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 400}
}

// Result is the outcome of one questionnaire turn.
type Result struct {
	Envelope Envelope

	// Level is set when Complete.
	Level    learner.Level
	Complete bool

	// Downgraded is set when the model twice failed to produce an envelope
	// and its raw text was wrapped instead.
	Downgraded bool
}

// Service drives the questionnaire.
type Service struct {
	provider llm.Provider
	cfg      Config
	log      *zap.Logger
}

// NewService creates an assessment service.
func NewService(provider llm.Provider, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{provider: provider, cfg: cfg, log: log.Named("assessment")}
}

// Step answers the learner's latest reply. transcript holds the prior
// questionnaire exchanges, oldest first.
func (s *Service) Step(ctx context.Context, transcript []llm.Message, text string) (*Result, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeAssessment)

	var replies []string
	for _, m := range transcript {
		if m.Role == llm.RoleUser {
			replies = append(replies, m.Content)
		}
	}
	replies = append(replies, text)
	ratings := RatingsFromReplies(replies)

	msgs := append(append([]llm.Message(nil), transcript...), llm.UserMessage(text))
	req := llm.Request{
		System:    systemPrompt + progressNote(ratings),
		Messages:  msgs,
		Schema:    EnvelopeSchema,
		MaxTokens: s.cfg.MaxTokens,
	}

	var env Envelope
	err := llm.Object(ctx, s.provider, req, &env)
	if llm.IsInvalid(err) {
		s.log.Warn("assessment envelope malformed twice, showing raw text", zap.Error(err))
		return &Result{Envelope: downgrade(llm.RawContent(err), ratings), Downgraded: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("assessment turn: %w", err)
	}

	res := &Result{Envelope: env}
	if env.Data.UserLevel == nil {
		return res, nil
	}

	level, ok := learner.ParseLevel(*env.Data.UserLevel)
	if !ok || !level.Assessed() {
		s.log.Warn("ignoring unknown assessment level", zap.String("user_level", *env.Data.UserLevel))
		res.Envelope.Data.UserLevel = nil
		return res, nil
	}

	if computed, complete := LevelFromRatings(ratings); complete && computed != level {
		s.log.Info("overriding model level with rating majority",
			zap.String("model", string(level)),
			zap.String("ratings", string(computed)),
			zap.Ints("values", ratings),
		)
		res.Envelope.Message = strings.NewReplacer(
			string(level), string(computed),
			level.Title(), computed.Title(),
		).Replace(res.Envelope.Message)
		level = computed
	}

	label := string(level)
	res.Envelope.Data.UserLevel = &label
	res.Level = level
	res.Complete = true
	return res, nil
}

// downgrade wraps unparseable model text in a well-formed envelope. The
// level stays null so the questionnaire simply continues.
func downgrade(raw string, ratings []int) Envelope {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		next := min(len(ratings), len(Questions)-1)
		msg = fmt.Sprintf("Sorry, I lost my train of thought. On a scale from 1 to 5, how confident are you with %s?", Questions[next])
	}
	return Envelope{Message: msg}
}
