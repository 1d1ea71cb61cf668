package llm

import (
	"context"
	"encoding/json"
)

// Provider is how every tutoring stage reaches a chat model.
type Provider interface {
	// Generate runs one completion. With req.Schema set, Content is the
	// validated JSON object; otherwise it is the reply text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID is the configured model, before any vendor aliasing.
	ModelID() string
}

// Request is one completion call: a system prompt, the alternating
// user/assistant transcript ending in the current user message, and an
// optional output schema.
type Request struct {
	System   string
	Messages []Message
	Schema   *Schema

	MaxTokens int

	// Temperature in [0, 1]. Classifiers and graders run at 0.
	Temperature float64
}

type Message struct {
	Role    Role
	Content string

	// Images ride on user messages and are sent as native image parts,
	// ahead of the text where the vendor cares about order.
	Images []Image
}

// Image is an inline attachment, base64 without a data: prefix.
type Image struct {
	MIMEType string
	Base64   string
}

func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserMessage is a text-only user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Schema is a JSON Schema the reply must satisfy. Name is kebab-case and
// doubles as the vendor-side schema name, e.g. "grade-verdict".
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	Content json.RawMessage
	Usage   Usage

	// Model is what the vendor reports having served, which may be a
	// dated snapshot of ModelID.
	Model string

	// StopReason is "end", "max_tokens" or "refusal".
	StopReason string
}

// Text returns Content as a string; nil-safe.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Content)
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
