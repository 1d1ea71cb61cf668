package store

import (
	"errors"
	"slices"
	"time"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

var (
	// ErrUnavailable wraps every storage failure. A turn that sees it aborts
	// without writing anything.
	ErrUnavailable = errors.New("session store unavailable")

	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned by CreateUser for a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
)

// User is a registered learner.
type User struct {
	UserID    string
	Email     string
	Username  string
	Roles     []string
	Level     learner.Level
	CreatedAt time.Time
}

// RoleTester grants the debug trace affordance.
const RoleTester = "tester"

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// Role is the sender of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType distinguishes the items of a mixed-content message.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is one item of a mixed text and image message.
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	MIMEType string   `json:"mime_type,omitempty"`
	Data     string   `json:"data,omitempty"` // base64
}

// Message is a persisted conversation turn. Content always holds the text;
// Parts is set only for mixed content.
type Message struct {
	ID        int64
	UserID    string
	ChatID    string
	Role      Role
	Content   string
	Parts     []Part
	Timestamp time.Time
}

// Images returns the image parts of the message.
func (m Message) Images() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Type == PartImage {
			out = append(out, p)
		}
	}
	return out
}

// LLMMessages converts persisted turns to model messages. Image parts are
// carried on user messages only.
func LLMMessages(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		lm := llm.Message{Role: llm.Role(m.Role), Content: m.Content}
		if m.Role == RoleUser {
			for _, p := range m.Images() {
				lm.Images = append(lm.Images, llm.Image{MIMEType: p.MIMEType, Base64: p.Data})
			}
		}
		out = append(out, lm)
	}
	return out
}

// Analysis is the bookkeeping row of the proficiency analyser.
type Analysis struct {
	UserID         string
	LastAnalysisAt *time.Time
	CurrentLevel   learner.Level
	PreviousLevel  learner.Level
	Recommendation string
	Confidence     float64
	Topics         learner.Topics
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int    // max results (0 = unlimited)
	Purpose string // exact purpose match when set
	UserID  string // exact learner match when set
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID           int64
	Sequence     int64
	Timestamp    time.Time
	UserID       string
	Provider     string
	Model        string
	Purpose      string
	SchemaName   string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	StopReason   string
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMUsage aggregates token usage for one purpose or model.
type LLMUsage struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ChatID returns the default conversation id for a user.
func ChatID(userID string) string {
	return userID + "_1"
}
