// Package tutor runs one learner turn through assessment, routing,
// retrieval and answering, and persists the result.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/answer"
	"github.com/abhisek/dsatutor/internal/assessment"
	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/classify"
	"github.com/abhisek/dsatutor/internal/document"
	"github.com/abhisek/dsatutor/internal/grade"
	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/proficiency"
	"github.com/abhisek/dsatutor/internal/recommend"
	"github.com/abhisek/dsatutor/internal/reformulate"
	"github.com/abhisek/dsatutor/internal/retriever"
	"github.com/abhisek/dsatutor/internal/schedule"
	"github.com/abhisek/dsatutor/internal/store"
)

// ErrNotAssessed is returned by operations that need a level before the
// learner has finished the initial assessment.
var ErrNotAssessed = errors.New("learner has not completed the assessment")

// Kind is the class of an assistant reply.
type Kind string

const (
	KindGreeting      Kind = "greeting"
	KindRefusal       Kind = "refusal"
	KindAnswer        Kind = "answer"
	KindAssessment    Kind = "assessment"
	KindClarification Kind = "clarification"
)

// Route is the router's decision for a turn.
type Route string

const (
	RouteDirectAnswer     Route = "DIRECT_ANSWER"
	RouteRetrievalAnswer  Route = "RETRIEVAL_ANSWER"
	RouteDocumentAnswer   Route = "DOCUMENT_ANSWER"
	RouteRefuseNonEnglish Route = "REFUSE_NON_ENGLISH"
	RouteRefuseOffTopic   Route = "REFUSE_OFF_TOPIC"
	RouteGreet            Route = "GREET"
)

// Reply is the assistant's answer to one turn.
type Reply struct {
	Text        string
	Kind        Kind
	LevelChange *learner.LevelChange
	Route       Route

	// Grounding lists the passages the answer was conditioned on.
	Grounding []retriever.Passage

	// Trace is the sequence of states the turn went through. It is only
	// filled in for users with the tester role.
	Trace []TraceStep

	// Assessment is the questionnaire envelope for assessment turns.
	Assessment *assessment.Envelope
}

// TraceStep is one visited state.
type TraceStep struct {
	State State  `json:"state"`
	Note  string `json:"note,omitempty"`
}

// Store is the session store as seen by the processor.
type Store interface {
	schedule.Store
	GetUser(ctx context.Context, userID string) (*store.User, error)
	AppendTurn(ctx context.Context, user, assistant *store.Message) error
	CompleteAssessment(ctx context.Context, userID string, level learner.Level, ack *store.Message) error
	ClearHistory(ctx context.Context, userID string) error
}

// Config holds the processor's tunables.
type Config struct {
	K               int
	MinPassageChars int
	Answer          answer.Config
	Document        document.Config
	Assessment      assessment.Config
	Schedule        schedule.Config
	Recommendations int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		K:               retriever.DefaultK,
		MinPassageChars: 50,
		Answer:          answer.DefaultConfig(),
		Document:        document.DefaultConfig(),
		Assessment:      assessment.DefaultConfig(),
		Schedule:        schedule.DefaultConfig(),
		Recommendations: recommend.DefaultCount,
	}
}

// Deps are the processor's collaborators.
type Deps struct {
	Store       Store
	Provider    llm.Provider
	Retriever   retriever.Retriever
	Attachments *attachment.Preprocessor
	Log         *zap.Logger
}

// Processor runs turns.
//
// Turns for the same user must not run concurrently; callers serialise
// them (the chat surface disables input, the HTTP server holds a per-user
// lock). Turns for different users may run in parallel.
type Processor struct {
	store       Store
	retriever   retriever.Retriever
	attachments *attachment.Preprocessor
	cfg         Config
	log         *zap.Logger
	now         func() time.Time

	assessor    *assessment.Service
	classifier  *classify.Classifier
	reformer    *reformulate.Reformulator
	grader      *grade.Grader
	rewriter    *grade.Rewriter
	answerer    *answer.Generator
	documents   *document.Pipeline
	scheduler   *schedule.Scheduler
	recommender *recommend.Recommender
}

// New creates a Processor.
func New(deps Deps, cfg Config) *Processor {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := deps.Retriever
	if r == nil {
		r = retriever.Nop{}
	}
	pre := deps.Attachments
	if pre == nil {
		pre = attachment.New(0)
	}
	if cfg.K <= 0 {
		cfg.K = retriever.DefaultK
	}

	p := deps.Provider
	return &Processor{
		store:       deps.Store,
		retriever:   r,
		attachments: pre,
		cfg:         cfg,
		log:         log.Named("tutor"),
		now:         time.Now,

		assessor:    assessment.NewService(p, cfg.Assessment, log),
		classifier:  classify.New(p, log),
		reformer:    reformulate.New(p, log),
		grader:      grade.NewGrader(p, log),
		rewriter:    grade.NewRewriter(p, log),
		answerer:    answer.New(p, cfg.Answer, log),
		documents:   document.New(p, cfg.Document, log),
		scheduler:   schedule.New(deps.Store, proficiency.New(p, log), cfg.Schedule, log),
		recommender: recommend.New(p, cfg.Recommendations, log),
	}
}

// SetClock overrides the time source used for scheduling. Tests only.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}

// ProcessTurn handles one learner turn. A reply is persisted together with
// the learner's message only when the turn completes; a cancelled turn or
// an unavailable model leaves the session untouched. An unavailable model
// yields an apology reply rather than an error.
func (p *Processor) ProcessTurn(ctx context.Context, userID, text string, atts []attachment.Attachment) (*Reply, error) {
	ctx = llm.WithLearner(ctx, userID)
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := p.store.LoadHistory(ctx, userID, store.ChatID(userID))
	if err != nil {
		return nil, err
	}

	st := &turnState{
		user:        user,
		text:        text,
		attachments: atts,
		history:     store.LLMMessages(msgs),
		state:       StateRoute,
	}
	if err := p.run(ctx, st); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A blank or unusable generation is a failed generation, not a fault.
		if llm.IsUnavailable(err) || llm.IsInvalid(err) {
			p.log.Warn("generation failed, apologising",
				zap.String("user_id", userID),
				zap.String("state", string(st.state)),
				zap.Error(err),
			)
			return p.finish(st, &Reply{Text: apologyMessage, Kind: KindRefusal, Route: st.reply.Route}), nil
		}
		return nil, err
	}
	return p.finish(st, st.reply), nil
}

func (p *Processor) finish(st *turnState, r *Reply) *Reply {
	if st.user.HasRole(store.RoleTester) {
		r.Trace = st.trace
	}
	return r
}

// ClearHistory removes the learner's conversation. Level and topics stay.
func (p *Processor) ClearHistory(ctx context.Context, userID string) error {
	if _, err := p.store.GetUser(ctx, userID); err != nil {
		return err
	}
	return p.store.ClearHistory(ctx, userID)
}

// Profile is a learner's level and topic coverage.
type Profile struct {
	User           *store.User
	Level          learner.Level
	Topics         learner.Topics
	LastAnalysisAt *time.Time
	Recommendation string
	Confidence     float64
}

// Profile returns the learner's current profile.
func (p *Processor) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	a, err := p.store.GetAnalysis(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		User:           user,
		Level:          user.Level,
		Topics:         a.Topics,
		LastAnalysisAt: a.LastAnalysisAt,
		Recommendation: a.Recommendation,
		Confidence:     a.Confidence,
	}, nil
}

// Recommendations suggests what the learner could study next.
func (p *Processor) Recommendations(ctx context.Context, userID string) ([]recommend.Recommendation, error) {
	prof, err := p.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prof.Level.Assessed() {
		return nil, ErrNotAssessed
	}
	recs, err := p.recommender.Recommend(ctx, prof.Level, prof.Topics)
	if err != nil {
		return nil, fmt.Errorf("recommendations for %s: %w", userID, err)
	}
	return recs, nil
}
