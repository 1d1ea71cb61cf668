// Package classify holds the label classifiers the turn router consults.
// Every classifier runs at temperature 0 and fails open on a label it does
// not recognise: English, DSA, retrieval needed.
package classify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/llm"
)

// Content is the topic class of a turn.
type Content string

const (
	ContentDSA        Content = "dsa"
	ContentPleasantry Content = "pleasantry"
	ContentOther      Content = "other"
)

// contextMessages is how much conversation the content classifier sees.
const contextMessages = 4

// Classifier wraps a provider with the router's label prompts.
type Classifier struct {
	provider llm.Provider
	log      *zap.Logger
}

// New creates a Classifier.
func New(provider llm.Provider, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{provider: provider, log: log.Named("classify")}
}

// IsEnglish reports whether the current turn is written in English. Only
// the turn itself is inspected, never the conversation.
func (c *Classifier) IsEnglish(ctx context.Context, text string) (bool, error) {
	if asciiOnly(text) && !hasLetters(text) {
		return true, nil
	}
	label, err := c.label(llm.WithPurpose(ctx, llm.PurposeClassifyLanguage), languagePrompt, nil, text)
	if err != nil {
		return true, err
	}
	switch label {
	case "english":
		return true, nil
	case "other", "non_english", "nonenglish":
		return false, nil
	}
	c.log.Debug("ambiguous language label, assuming english", zap.String("label", label))
	return true, nil
}

// Content classifies a turn as dsa, pleasantry or other. The recent
// conversation is included so a follow-up like "and its complexity?"
// stays on topic.
func (c *Classifier) Content(ctx context.Context, history []llm.Message, text string) (Content, error) {
	label, err := c.label(llm.WithPurpose(ctx, llm.PurposeClassifyContent), contentPrompt, tail(history, contextMessages), text)
	if err != nil {
		return ContentDSA, err
	}
	switch Content(label) {
	case ContentDSA, ContentPleasantry, ContentOther:
		return Content(label), nil
	}
	c.log.Debug("ambiguous content label, assuming dsa", zap.String("label", label))
	return ContentDSA, nil
}

// NeedsRetrieval reports whether a standalone question should be grounded
// in the reference corpus.
func (c *Classifier) NeedsRetrieval(ctx context.Context, question string) (bool, error) {
	label, err := c.label(llm.WithPurpose(ctx, llm.PurposeClassifyRetrieval), retrievalPrompt, nil, question)
	if err != nil {
		return true, err
	}
	switch label {
	case "true", "yes":
		return true, nil
	case "false", "no":
		return false, nil
	}
	c.log.Debug("ambiguous retrieval label, assuming true", zap.String("label", label))
	return true, nil
}

func (c *Classifier) label(ctx context.Context, system string, history []llm.Message, text string) (string, error) {
	user := text
	if len(history) > 0 {
		user = renderContext(history) + "\nCurrent message: " + text
	}
	out, err := llm.Text(ctx, c.provider, llm.Request{
		System:      system,
		Messages:    []llm.Message{llm.UserMessage(user)},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return normalizeLabel(out), nil
}

// normalizeLabel keeps the first word of a reply, lowercased and stripped
// of quotes and punctuation.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func renderContext(history []llm.Message) string {
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func tail(msgs []llm.Message, n int) []llm.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func asciiOnly(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func hasLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
