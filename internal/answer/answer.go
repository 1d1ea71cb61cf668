// Package answer produces the final level-conditioned tutoring reply.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/retriever"
)

// Mode selects how an answer is produced.
type Mode string

const (
	// ModeGrounded answers from retrieved passages.
	ModeGrounded Mode = "grounded"
	// ModeDirect answers from general knowledge.
	ModeDirect Mode = "direct"
	// ModeFallback answers from general knowledge after retrieval found
	// nothing, and says so.
	ModeFallback Mode = "fallback"
	// ModeConverse replies to small talk.
	ModeConverse Mode = "converse"
)

// FallbackCaveat opens every fallback answer.
const FallbackCaveat = "I couldn't find this in my reference material, so this answer is based on general knowledge."

// Config holds generation settings.
type Config struct {
	MaxTokens       int
	Temperature     float64
	HistoryMessages int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 1200, HistoryMessages: 10}
}

// Input is everything an answer is conditioned on.
type Input struct {
	Question string // standalone form of the learner's turn
	Level    learner.Level
	History  []llm.Message
	Passages []retriever.Passage
}

// Generator produces answers.
type Generator struct {
	provider llm.Provider
	cfg      Config
	log      *zap.Logger
}

// New creates a Generator.
func New(provider llm.Provider, cfg Config, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{provider: provider, cfg: cfg, log: log.Named("answer")}
}

// Generate produces the reply for mode. Grounded mode without passages is
// treated as fallback.
func (g *Generator) Generate(ctx context.Context, mode Mode, in Input) (string, error) {
	if mode == ModeGrounded && len(in.Passages) == 0 {
		mode = ModeFallback
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeAnswer, string(mode))

	system := buildSystem(in.Level, mode)
	question := in.Question
	switch mode {
	case ModeGrounded:
		question = buildGroundedQuestion(in.Question, in.Passages)
	case ModeConverse:
		system = conversePrompt
	}

	msgs := append(g.tail(in.History), llm.UserMessage(question))
	text, err := llm.Text(ctx, g.provider, llm.Request{
		System:      system,
		Messages:    msgs,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate %s answer: %w", mode, err)
	}
	if text == "" {
		return "", &llm.ErrInvalidResponse{Err: fmt.Errorf("empty %s answer", mode)}
	}

	if mode == ModeFallback && !strings.HasPrefix(text, FallbackCaveat) {
		text = FallbackCaveat + "\n\n" + text
	}
	g.log.Debug("answer generated",
		zap.String("mode", string(mode)),
		zap.String("level", string(in.Level)),
		zap.Int("passages", len(in.Passages)),
	)
	return text, nil
}

// tail returns the most recent history, text only, starting at a user
// message.
func (g *Generator) tail(history []llm.Message) []llm.Message {
	n := g.cfg.HistoryMessages
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	for len(history) > 0 && history[0].Role != llm.RoleUser {
		history = history[1:]
	}
	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
