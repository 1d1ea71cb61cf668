package server

import (
	"time"

	"github.com/abhisek/dsatutor/internal/assessment"
	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/tutor"
)

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// UserResponse describes a learner account.
type UserResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *store.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		UserID:    u.UserID,
		Email:     u.Email,
		Username:  u.Username,
		Roles:     roles,
		Level:     string(u.Level),
		CreatedAt: u.CreatedAt,
	}
}

// TurnRequest is the JSON form of POST /api/users/:id/turns.
type TurnRequest struct {
	Text string `json:"text"`
}

// PassageResponse is one grounding passage.
type PassageResponse struct {
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// LevelChangeResponse reports a level transition.
type LevelChangeResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// ReplyResponse is the assistant's answer to a turn.
type ReplyResponse struct {
	Text        string               `json:"text"`
	Kind        string               `json:"kind"`
	Route       string               `json:"route,omitempty"`
	LevelChange *LevelChangeResponse `json:"level_change,omitempty"`
	Grounding   []PassageResponse    `json:"grounding,omitempty"`
	Trace       []tutor.TraceStep    `json:"trace,omitempty"`
	Assessment  *assessment.Envelope `json:"assessment,omitempty"`
}

func toReplyResponse(r *tutor.Reply) ReplyResponse {
	out := ReplyResponse{
		Text:       r.Text,
		Kind:       string(r.Kind),
		Route:      string(r.Route),
		Trace:      r.Trace,
		Assessment: r.Assessment,
	}
	if lc := r.LevelChange; lc != nil {
		out.LevelChange = &LevelChangeResponse{From: string(lc.From), To: string(lc.To), Reason: lc.Reason}
	}
	for _, p := range r.Grounding {
		out.Grounding = append(out.Grounding, PassageResponse{SourceID: p.SourceID, Text: p.Text, Score: p.Score})
	}
	return out
}

// MessageResponse is one persisted turn.
type MessageResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Images    int       `json:"images,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProfileResponse is a learner's level and topics.
type ProfileResponse struct {
	User           UserResponse   `json:"user"`
	Level          string         `json:"level"`
	Topics         learner.Topics `json:"topics"`
	LastAnalysisAt *time.Time     `json:"last_analysis_at,omitempty"`
	Recommendation string         `json:"recommendation,omitempty"`
	Confidence     float64        `json:"confidence"`
}
