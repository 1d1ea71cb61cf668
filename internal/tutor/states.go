package tutor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/answer"
	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/classify"
	"github.com/abhisek/dsatutor/internal/document"
	"github.com/abhisek/dsatutor/internal/grade"
	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/retriever"
	"github.com/abhisek/dsatutor/internal/store"
)

// State is a step of the turn graph.
type State string

const (
	StateRoute       State = "ROUTE"
	StateAssess      State = "ASSESS"
	StateReformulate State = "REFORMULATE"
	StateRetrieve    State = "RETRIEVE"
	StateGrade       State = "GRADE"
	StateGenerate    State = "GENERATE"
	StateValidateDoc State = "VALIDATE_DOC"
	StateGenerateDoc State = "GENERATE_DOC"
	StateAnalyse     State = "ANALYSE"
	StateDone        State = "DONE"
)

// maxRewrites bounds the GRADE -> RETRIEVE loop.
const maxRewrites = 1

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateRoute:       {StateAssess, StateReformulate, StateGenerate, StateValidateDoc, StateDone},
	StateAssess:      {StateDone},
	StateReformulate: {StateRetrieve, StateGenerate},
	StateRetrieve:    {StateGrade, StateGenerate},
	StateGrade:       {StateRetrieve, StateGenerate},
	StateGenerate:    {StateAnalyse},
	StateValidateDoc: {StateGenerateDoc, StateDone},
	StateGenerateDoc: {StateAnalyse},
	StateAnalyse:     {StateDone},
}

type turnState struct {
	user        *store.User
	text        string
	attachments []attachment.Attachment
	history     []llm.Message

	state State
	trace []TraceStep

	processed *attachment.Processed
	question  string
	query     string
	passages  []retriever.Passage
	mode      answer.Mode
	rewrites  int

	reply     *Reply
	persisted bool
	// skipPersist is set for turns rejected before any stage ran.
	skipPersist bool
}

func (st *turnState) note(format string, args ...any) {
	if len(st.trace) == 0 {
		return
	}
	st.trace[len(st.trace)-1].Note = fmt.Sprintf(format, args...)
}

type handler func(p *Processor, ctx context.Context, st *turnState) (State, error)

var handlers map[State]handler

func init() {
	handlers = map[State]handler{
		StateRoute:       (*Processor).route,
		StateAssess:      (*Processor).assess,
		StateReformulate: (*Processor).reformulate,
		StateRetrieve:    (*Processor).retrieve,
		StateGrade:       (*Processor).grade,
		StateGenerate:    (*Processor).generate,
		StateValidateDoc: (*Processor).validateDoc,
		StateGenerateDoc: (*Processor).generateDoc,
		StateAnalyse:     (*Processor).analyse,
	}
}

func (p *Processor) run(ctx context.Context, st *turnState) error {
	st.reply = &Reply{}
	for st.state != StateDone {
		if err := ctx.Err(); err != nil {
			return err
		}
		st.trace = append(st.trace, TraceStep{State: st.state})

		next, err := handlers[st.state](p, ctx, st)
		if err != nil {
			return err
		}
		if !slices.Contains(transitions[st.state], next) {
			return fmt.Errorf("illegal transition %s -> %s", st.state, next)
		}
		st.state = next
	}
	if st.skipPersist {
		return nil
	}
	return p.commit(ctx, st)
}

// commit appends the learner message and the reply in one transaction.
func (p *Processor) commit(ctx context.Context, st *turnState) error {
	if st.persisted {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	userMsg, asstMsg := p.messages(st)
	if err := p.store.AppendTurn(ctx, userMsg, asstMsg); err != nil {
		return err
	}
	st.persisted = true
	return nil
}

func (p *Processor) messages(st *turnState) (*store.Message, *store.Message) {
	uid := st.user.UserID
	content := st.text
	var parts []store.Part
	var names []string
	for _, a := range st.attachments {
		names = append(names, a.Name)
	}
	if len(names) > 0 {
		content = strings.TrimSpace(content + "\n\n[Attached: " + strings.Join(names, ", ") + "]")
	}
	if st.processed != nil && len(st.processed.Images) > 0 {
		parts = append(parts, store.Part{Type: store.PartText, Text: content})
		for _, img := range st.processed.Images {
			parts = append(parts, store.Part{Type: store.PartImage, MIMEType: img.MIMEType, Data: img.Base64})
		}
	}
	return &store.Message{UserID: uid, Role: store.RoleUser, Content: content, Parts: parts},
		&store.Message{UserID: uid, Role: store.RoleAssistant, Content: st.reply.Text}
}

func (p *Processor) route(ctx context.Context, st *turnState) (State, error) {
	if !st.user.Level.Assessed() {
		st.note("level unknown")
		return StateAssess, nil
	}

	if len(st.attachments) > 0 {
		processed, err := p.attachments.Process(st.attachments)
		if err != nil {
			if errors.Is(err, attachment.ErrTooLarge) || errors.Is(err, attachment.ErrUnsupported) {
				st.note("attachment rejected: %v", err)
				st.reply.Text = attachmentRefusal(err, p.attachments.Limit())
				st.reply.Kind = KindRefusal
				st.skipPersist = true
				return StateDone, nil
			}
			return "", err
		}
		st.processed = processed
	}

	if strings.TrimSpace(st.text) != "" {
		english, err := p.classifier.IsEnglish(ctx, st.text)
		if err != nil {
			p.log.Warn("language check failed, assuming english", zap.Error(err))
		}
		if !english {
			st.note("non-english")
			st.reply.Text, st.reply.Kind, st.reply.Route = nonEnglishMessage, KindRefusal, RouteRefuseNonEnglish
			return StateDone, nil
		}
	}

	// A bare upload has no caption to classify; the validator judges it.
	if strings.TrimSpace(st.text) != "" || st.processed.Empty() {
		content, err := p.classifier.Content(ctx, st.history, st.text)
		if err != nil {
			p.log.Warn("content classification failed, assuming dsa", zap.Error(err))
		}
		st.note("content=%s", content)
		switch content {
		case classify.ContentPleasantry:
			st.reply.Route = RouteGreet
			st.mode = answer.ModeConverse
			st.question = st.text
			return StateGenerate, nil
		case classify.ContentOther:
			st.reply.Text, st.reply.Kind, st.reply.Route = offTopicMessage, KindRefusal, RouteRefuseOffTopic
			return StateDone, nil
		}
	}

	if !st.processed.Empty() {
		st.reply.Route = RouteDocumentAnswer
		return StateValidateDoc, nil
	}
	return StateReformulate, nil
}

func (p *Processor) assess(ctx context.Context, st *turnState) (State, error) {
	res, err := p.assessor.Step(ctx, st.history, st.text)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	env := res.Envelope
	st.reply.Text = env.Message
	st.reply.Kind = KindAssessment
	st.reply.Assessment = &env

	uid := st.user.UserID
	if !res.Complete {
		st.note("questionnaire continues")
		return StateDone, p.commit(ctx, st)
	}

	st.note("assessed as %s", res.Level)
	ack := &store.Message{UserID: uid, Role: store.RoleAssistant, Content: env.Message}
	if err := p.store.CompleteAssessment(ctx, uid, res.Level, ack); err != nil {
		return "", err
	}
	st.persisted = true
	st.reply.LevelChange = &learner.LevelChange{From: st.user.Level, To: res.Level, Reason: "assessment"}
	return StateDone, nil
}

func (p *Processor) reformulate(ctx context.Context, st *turnState) (State, error) {
	st.question = p.reformer.Reformulate(ctx, st.history, st.text)
	st.query = st.question
	st.note("question=%q", st.question)

	need, err := p.classifier.NeedsRetrieval(ctx, st.question)
	if err != nil {
		p.log.Warn("retrieval check failed, retrieving", zap.Error(err))
	}
	if need {
		st.reply.Route = RouteRetrievalAnswer
		return StateRetrieve, nil
	}
	st.reply.Route = RouteDirectAnswer
	st.mode = answer.ModeDirect
	return StateGenerate, nil
}

func (p *Processor) retrieve(ctx context.Context, st *turnState) (State, error) {
	passages, err := p.retriever.Retrieve(ctx, st.query, p.cfg.K)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.log.Warn("retrieval failed, answering without grounding", zap.Error(err))
		passages = nil
	}

	if len(passages) == 0 || retriever.TotalChars(passages) < p.cfg.MinPassageChars {
		st.note("insufficient passages (%d)", len(passages))
		if len(st.passages) == 0 {
			st.mode = answer.ModeFallback
			return StateGenerate, nil
		}
		// A rewrite found nothing better; keep what the first attempt got.
		st.mode = answer.ModeGrounded
		return StateGenerate, nil
	}
	st.note("%d passages", len(passages))
	st.passages = passages
	return StateGrade, nil
}

func (p *Processor) grade(ctx context.Context, st *turnState) (State, error) {
	g, err := p.grader.Grade(ctx, st.question, st.passages)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.log.Warn("grading failed, generating", zap.Error(err))
		g = &grade.Grade{Verdict: grade.VerdictGenerate}
	}
	st.note("verdict=%s rewrites=%d", g.Verdict, st.rewrites)

	st.mode = answer.ModeGrounded
	if g.Verdict != grade.VerdictRewrite || st.rewrites >= maxRewrites {
		return StateGenerate, nil
	}

	q, err := p.rewriter.Rewrite(ctx, st.query)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.log.Warn("query rewrite failed, generating", zap.Error(err))
		return StateGenerate, nil
	}
	st.rewrites++
	st.query = q
	return StateRetrieve, nil
}

func (p *Processor) generate(ctx context.Context, st *turnState) (State, error) {
	in := answer.Input{
		Question: st.question,
		Level:    st.user.Level,
		History:  st.history,
	}
	if st.mode == answer.ModeGrounded {
		in.Passages = st.passages
	}
	text, err := p.answerer.Generate(ctx, st.mode, in)
	if err != nil {
		return "", err
	}
	st.note("mode=%s", st.mode)

	st.reply.Text = text
	st.reply.Kind = KindAnswer
	if st.mode == answer.ModeConverse {
		st.reply.Kind = KindGreeting
	}
	st.reply.Grounding = in.Passages
	return StateAnalyse, nil
}

func (p *Processor) validateDoc(ctx context.Context, st *turnState) (State, error) {
	in := p.documentInput(st)
	v, err := p.documents.Validate(ctx, in)
	if err != nil {
		return "", err
	}
	st.note("%s", v.Classification)

	switch v.Classification {
	case document.NoDSAContent:
		st.reply.Text, st.reply.Kind = document.RedirectMessage, KindRefusal
		return StateDone, nil
	case document.LowConfidence:
		st.reply.Text, st.reply.Kind = document.ClarifyMessage(in), KindClarification
		return StateDone, nil
	}
	return StateGenerateDoc, nil
}

func (p *Processor) generateDoc(ctx context.Context, st *turnState) (State, error) {
	text, err := p.documents.Explain(ctx, p.documentInput(st))
	if err != nil {
		return "", err
	}
	st.reply.Text, st.reply.Kind = text, KindAnswer
	return StateAnalyse, nil
}

func (p *Processor) documentInput(st *turnState) document.Input {
	return document.Input{
		Text:    st.text,
		Level:   st.user.Level,
		History: st.history,
		Images:  st.processed.Images,
		PDFText: st.processed.PDFText(),
	}
}

// analyse commits the turn, then runs the proficiency analysis when it is
// due. Analysis failures never fail the turn.
func (p *Processor) analyse(ctx context.Context, st *turnState) (State, error) {
	if err := p.commit(ctx, st); err != nil {
		return "", err
	}

	change, err := p.scheduler.MaybeRun(ctx, st.user.UserID, st.user.Level, p.now())
	if err != nil {
		p.log.Warn("proficiency analysis skipped", zap.String("user_id", st.user.UserID), zap.Error(err))
		st.note("analysis failed")
		return StateDone, nil
	}
	if change != nil {
		st.note("level %s -> %s", change.From, change.To)
		st.reply.LevelChange = change
	}
	return StateDone, nil
}
