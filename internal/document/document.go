// Package document explains learner-uploaded images and PDFs after
// checking that they are about data structures and algorithms.
package document

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

// Classification is the validator's verdict on an upload.
type Classification string

const (
	HighConfidence Classification = "DSA_CONTENT_HIGH_CONFIDENCE"
	LowConfidence  Classification = "DSA_CONTENT_LOW_CONFIDENCE"
	NoDSAContent   Classification = "NO_DSA_CONTENT"
)

// DefaultPDFMaxChars caps the PDF text sent to the model.
const DefaultPDFMaxChars = 20000

// validationExcerpt is how much PDF text the validator sees.
const validationExcerpt = 4000

// Config holds generation settings.
type Config struct {
	MaxTokens   int
	PDFMaxChars int

	// HistoryMessages caps the prior turns sent with an explanation.
	// Zero sends the whole session.
	HistoryMessages int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 1500, PDFMaxChars: DefaultPDFMaxChars, HistoryMessages: 10}
}

// Input is one document turn.
type Input struct {
	Text    string // the learner's message, possibly empty
	Level   learner.Level
	History []llm.Message
	Images  []attachment.Image
	PDFText string
}

// Result is the reply to a document turn.
type Result struct {
	Classification Classification
	Reason         string
	Text           string
}

// Pipeline validates and explains uploads.
type Pipeline struct {
	provider llm.Provider
	cfg      Config
	log      *zap.Logger
}

// New creates a Pipeline.
func New(provider llm.Provider, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.PDFMaxChars <= 0 {
		cfg.PDFMaxChars = DefaultPDFMaxChars
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{provider: provider, cfg: cfg, log: log.Named("document")}
}

// Run validates the upload and, when it holds DSA content, explains it.
// Off-topic uploads get a redirect and unclear ones a clarifying question.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	verdict, err := p.Validate(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &Result{Classification: verdict.Classification, Reason: verdict.Reason}
	switch verdict.Classification {
	case NoDSAContent:
		res.Text = RedirectMessage
	case LowConfidence:
		res.Text = ClarifyMessage(in)
	default:
		text, err := p.Explain(ctx, in)
		if err != nil {
			return nil, err
		}
		res.Text = text
	}
	return res, nil
}

// Verdict is the parsed validator reply.
type Verdict struct {
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason"`
}

// Validate classifies the upload. A reply that stays malformed after the
// corrective retry counts as high confidence.
func (p *Pipeline) Validate(ctx context.Context, in Input) (*Verdict, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeDocumentValidate)

	var v Verdict
	err := llm.Object(ctx, p.provider, llm.Request{
		System:    validatorPrompt,
		Messages:  []llm.Message{p.userMessage(in, validationExcerpt)},
		Schema:    VerdictSchema,
		MaxTokens: 200,
	}, &v)
	if llm.IsInvalid(err) {
		p.log.Warn("validator reply malformed, proceeding as high confidence", zap.Error(err))
		return &Verdict{Classification: HighConfidence, Reason: "validator reply unreadable"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	switch v.Classification {
	case HighConfidence, LowConfidence, NoDSAContent:
	default:
		v.Classification = HighConfidence
	}
	return &v, nil
}

// Explain produces the level-appropriate explanation of the upload.
func (p *Pipeline) Explain(ctx context.Context, in Input) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeDocumentAnswer)

	history := in.History
	if n := p.cfg.HistoryMessages; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	for len(history) > 0 && history[0].Role != llm.RoleUser {
		history = history[1:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, p.userMessage(in, p.cfg.PDFMaxChars))

	text, err := llm.Text(ctx, p.provider, llm.Request{
		System:    buildExplainPrompt(in.Level, in.PDFText != ""),
		Messages:  msgs,
		MaxTokens: p.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("explain document: %w", err)
	}
	if text == "" {
		return "", &llm.ErrInvalidResponse{Err: fmt.Errorf("empty document explanation")}
	}
	return text, nil
}

func (p *Pipeline) userMessage(in Input, maxPDF int) llm.Message {
	var b strings.Builder
	if t := strings.TrimSpace(in.Text); t != "" {
		fmt.Fprintf(&b, "Learner's message: %s\n\n", t)
	} else {
		b.WriteString("The learner uploaded material without a message.\n\n")
	}
	if len(in.Images) > 0 {
		fmt.Fprintf(&b, "Attached images: %d\n", len(in.Images))
	}
	if in.PDFText != "" {
		fmt.Fprintf(&b, "PDF text:\n%s\n", truncate(in.PDFText, maxPDF))
	}

	msg := llm.UserMessage(strings.TrimSpace(b.String()))
	for _, img := range in.Images {
		msg.Images = append(msg.Images, llm.Image{MIMEType: img.MIMEType, Base64: img.Base64})
	}
	return msg
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "\n[... truncated]"
}
