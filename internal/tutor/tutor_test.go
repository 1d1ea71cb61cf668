package tutor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dsatutor/internal/answer"
	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/retriever"
	"github.com/abhisek/dsatutor/internal/store"
)

// script answers model calls by purpose, in order.
type script struct {
	mu    sync.Mutex
	queue map[string][]llm.MockResponse
	calls map[string]int
	hooks map[string]func()
}

func newScript() *script {
	return &script{
		queue: map[string][]llm.MockResponse{},
		calls: map[string]int{},
		hooks: map[string]func(){},
	}
}

func (s *script) on(purpose string, rs ...llm.MockResponse) *script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[purpose] = append(s.queue[purpose], rs...)
	return s
}

func (s *script) text(purpose, text string) *script {
	return s.on(purpose, llm.MockText(text))
}

func (s *script) count(purpose string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[purpose]
}

func (s *script) handle(ctx context.Context, _ llm.Request) llm.MockResponse {
	purpose := llm.PurposeFrom(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[purpose]++
	if h := s.hooks[purpose]; h != nil {
		h()
	}
	q := s.queue[purpose]
	if len(q) == 0 {
		return llm.MockResponse{Err: &llm.ErrProviderUnavailable{}}
	}
	s.queue[purpose] = q[1:]
	return q[0]
}

type fakeRetriever struct {
	mu      sync.Mutex
	results [][]retriever.Passage
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]retriever.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if len(f.results) == 0 {
		return nil, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func (f *fakeRetriever) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type harness struct {
	st      *store.Store
	script  *script
	ret     *fakeRetriever
	proc    *Processor
	now     time.Time
	advance func(time.Duration)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{st: st, script: newScript(), ret: &fakeRetriever{}, now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	h.advance = func(d time.Duration) { h.now = h.now.Add(d) }
	st.SetClock(clock)

	mock := llm.NewMockProvider()
	mock.Handler = h.script.handle

	h.proc = New(Deps{
		Store:       st,
		Provider:    mock,
		Retriever:   h.ret,
		Attachments: attachment.New(2048),
	}, DefaultConfig())
	h.proc.SetClock(clock)
	return h
}

func (h *harness) user(t *testing.T, level learner.Level, roles ...string) *store.User {
	t.Helper()
	ctx := context.Background()
	u, err := h.st.CreateUser(ctx, "learner-"+string(level)+"@example.com", "learner", roles)
	require.NoError(t, err)
	if level != learner.LevelUnknown {
		require.NoError(t, h.st.SetLevel(ctx, u.UserID, level))
	}
	return u
}

func (h *harness) turn(t *testing.T, userID, text string, atts ...attachment.Attachment) *Reply {
	t.Helper()
	h.advance(time.Second)
	r, err := h.proc.ProcessTurn(context.Background(), userID, text, atts)
	require.NoError(t, err)
	return r
}

func (h *harness) history(t *testing.T, userID string) []store.Message {
	t.Helper()
	msgs, err := h.st.LoadHistory(context.Background(), userID, "")
	require.NoError(t, err)
	return msgs
}

func envelope(msg string, level any) llm.MockResponse {
	return llm.MockJSON(map[string]any{"message": msg, "data": map[string]any{"user_level": level}})
}

func gradeReply(verdict string) llm.MockResponse {
	return llm.MockJSON(map[string]any{
		"scores":    map[string]any{"relevance": 8, "completeness": 7, "technical_accuracy": 9, "ds_algorithm_coverage": 7},
		"verdict":   verdict,
		"reasoning": "ok",
	})
}

var arrayPassage = retriever.Passage{
	Text:     "An array stores elements of the same type in contiguous memory, indexed from zero.",
	SourceID: "arrays.md",
	Score:    0.9,
}

func TestProcessTurn_AssessmentFlow(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelUnknown)
	h.script.
		on("assessment", envelope("Welcome! On a scale of 1-5, how comfortable are you with arrays, linked lists, stacks and queues?", nil)).
		on("assessment", envelope("Thanks! How about sorting algorithms, 1-5?", nil)).
		on("assessment", envelope("And trees, graphs and dynamic programming, 1-5?", nil)).
		on("assessment", envelope("You're at the intermediate level. Ask me any DSA question to get started!", "intermediate"))

	for _, text := range []string{"hi", "3", "4"} {
		r := h.turn(t, u.UserID, text)
		assert.Equal(t, KindAssessment, r.Kind)
		require.NotNil(t, r.Assessment)
		assert.Nil(t, r.Assessment.Data.UserLevel)
		assert.Nil(t, r.LevelChange)
	}
	assert.Len(t, h.history(t, u.UserID), 6)

	r := h.turn(t, u.UserID, "2")
	require.NotNil(t, r.Assessment.Data.UserLevel)
	assert.Equal(t, "intermediate", *r.Assessment.Data.UserLevel)
	assert.Contains(t, r.Text, "Ask me any DSA question")
	assert.Equal(t, &learner.LevelChange{From: learner.LevelUnknown, To: learner.LevelIntermediate, Reason: "assessment"}, r.LevelChange)

	lvl, err := h.st.GetLevel(context.Background(), u.UserID)
	require.NoError(t, err)
	assert.Equal(t, learner.LevelIntermediate, lvl)

	msgs := h.history(t, u.UserID)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleAssistant, msgs[0].Role)

	last, err := h.st.GetLastAnalysisAt(context.Background(), u.UserID)
	require.NoError(t, err)
	assert.NotNil(t, last, "assessment starts the analysis window")

	// Once assessed, the questionnaire is never consulted again.
	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		text("reformulate", "What is a stack?").
		text("classify-retrieval", "false").
		text("answer-direct", "A stack is last-in, first-out.")
	r = h.turn(t, u.UserID, "What is a stack?")
	assert.Equal(t, KindAnswer, r.Kind)
	assert.Equal(t, 4, h.script.count("assessment"))
}

func TestProcessTurn_GroundedBeginnerThenThanks(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)
	h.ret.results = [][]retriever.Passage{{arrayPassage}}
	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		text("reformulate", "What is an array?").
		text("classify-retrieval", "true").
		on("grade", gradeReply("GENERATE")).
		text("answer-grounded", "According to the reference material, an array is like a row of mailboxes.")

	r := h.turn(t, u.UserID, "What is an array?")
	assert.Equal(t, KindAnswer, r.Kind)
	assert.Equal(t, RouteRetrievalAnswer, r.Route)
	assert.Contains(t, r.Text, "row of mailboxes")
	assert.NotContains(t, r.Text, "O(")
	assert.Equal(t, []retriever.Passage{arrayPassage}, r.Grounding)
	assert.Equal(t, []string{"What is an array?"}, h.ret.queries)
	assert.Nil(t, r.Trace, "trace is for testers only")

	h.script.
		text("classify-language", "english").
		text("classify-content", "pleasantry").
		text("answer-converse", "You're welcome! What would you like to learn next?")
	r = h.turn(t, u.UserID, "Thanks!")
	assert.Equal(t, KindGreeting, r.Kind)
	assert.Equal(t, RouteGreet, r.Route)
	assert.Equal(t, 1, h.ret.calls(), "pleasantries never retrieve")

	msgs := h.history(t, u.UserID)
	require.Len(t, msgs, 4)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp))
	}
	assert.Equal(t, "Thanks!", msgs[2].Content)
}

func TestProcessTurn_FollowUpIsReformulated(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelIntermediate)
	ctx := context.Background()
	require.NoError(t, h.st.AppendTurn(ctx,
		&store.Message{UserID: u.UserID, Role: store.RoleUser, Content: "How does quicksort work?"},
		&store.Message{UserID: u.UserID, Role: store.RoleAssistant, Content: "Quicksort picks a pivot and partitions..."},
	))
	h.ret.results = [][]retriever.Passage{{{Text: strings.Repeat("Quicksort runs in O(n log n) on average. ", 3), SourceID: "sorting.md"}}}
	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		text("reformulate", "What is the time complexity of quicksort?").
		text("classify-retrieval", "true").
		on("grade", gradeReply("GENERATE")).
		text("answer-grounded", "Average O(n log n), worst case O(n²) with poor pivots.")

	r := h.turn(t, u.UserID, "What about the time complexity?")
	assert.Contains(t, r.Text, "O(n log n)")
	assert.Contains(t, r.Text, "O(n²)")
	assert.Equal(t, []string{"What is the time complexity of quicksort?"}, h.ret.queries)
}

func TestProcessTurn_RewriteLoopRunsOnce(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelAdvanced, store.RoleTester)
	h.ret.results = [][]retriever.Passage{{arrayPassage}, {arrayPassage}}
	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		text("reformulate", "How do skip lists compare to balanced trees?").
		text("classify-retrieval", "true").
		on("grade", gradeReply("REWRITE"), gradeReply("REWRITE")).
		text("rewrite", "skip list vs balanced binary search tree expected complexity").
		text("answer-grounded", "Skip lists trade determinism for simplicity...")

	r := h.turn(t, u.UserID, "skip lists vs balanced trees?")
	assert.Equal(t, KindAnswer, r.Kind)
	assert.Equal(t, 2, h.ret.calls())
	assert.Equal(t, 2, h.script.count("grade"))
	assert.Equal(t, 1, h.script.count("rewrite"))
	assert.Equal(t, "skip list vs balanced binary search tree expected complexity", h.ret.queries[1])

	var states []State
	for _, s := range r.Trace {
		states = append(states, s.State)
	}
	assert.Equal(t, []State{
		StateRoute, StateReformulate, StateRetrieve, StateGrade,
		StateRetrieve, StateGrade, StateGenerate, StateAnalyse,
	}, states)
}

func TestProcessTurn_NoPassagesFallsBack(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelIntermediate)
	h.ret.results = [][]retriever.Passage{{{Text: "too short", SourceID: "x.md"}}}
	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		text("reformulate", "What is a treap?").
		text("classify-retrieval", "true").
		text("answer-fallback", "A treap combines a BST with a heap.")

	r := h.turn(t, u.UserID, "What is a treap?")
	assert.True(t, strings.HasPrefix(r.Text, answer.FallbackCaveat))
	assert.Zero(t, h.script.count("grade"), "thin retrieval skips grading")
	assert.Empty(t, r.Grounding)
}

func TestProcessTurn_Refusals(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)

	h.script.
		text("classify-language", "english").
		text("classify-content", "other")
	r := h.turn(t, u.UserID, "What's the weather today?")
	assert.Equal(t, KindRefusal, r.Kind)
	assert.Equal(t, RouteRefuseOffTopic, r.Route)
	assert.Equal(t, offTopicMessage, r.Text)

	h.script.text("classify-language", "other")
	r = h.turn(t, u.UserID, "¿Qué es una pila?")
	assert.Equal(t, RouteRefuseNonEnglish, r.Route)
	assert.Equal(t, nonEnglishMessage, r.Text)

	assert.Zero(t, h.ret.calls())
	assert.Len(t, h.history(t, u.UserID), 4)
}

func TestProcessTurn_ModelUnavailableApologises(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)
	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		text("reformulate", "What is a queue?").
		text("classify-retrieval", "false")

	r := h.turn(t, u.UserID, "What is a queue?")
	assert.Equal(t, apologyMessage, r.Text)
	assert.Empty(t, h.history(t, u.UserID), "a failed turn writes nothing")
}

func TestProcessTurn_BlankAnswerApologises(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness) []attachment.Attachment
	}{
		{
			name: "direct answer",
			setup: func(h *harness) []attachment.Attachment {
				h.script.
					text("classify-language", "english").
					text("classify-content", "dsa").
					text("reformulate", "What is a queue?").
					text("classify-retrieval", "false").
					text("answer-direct", "   ")
				return nil
			},
		},
		{
			name: "document explanation",
			setup: func(h *harness) []attachment.Attachment {
				h.script.
					text("classify-language", "english").
					text("classify-content", "dsa").
					on("document-validate", llm.MockJSON(map[string]any{"classification": "DSA_CONTENT_HIGH_CONFIDENCE", "reason": "a tree"})).
					text("document-answer", "\n\t ")
				return []attachment.Attachment{{Name: "bst.png", MIMEType: "image/png", Data: pngBytes(t)}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			u := h.user(t, learner.LevelBeginner)
			atts := tt.setup(h)

			r := h.turn(t, u.UserID, "What is a queue?", atts...)
			assert.Equal(t, apologyMessage, r.Text)
			assert.Equal(t, KindRefusal, r.Kind)
			assert.Empty(t, h.history(t, u.UserID), "a failed generation writes nothing")
		})
	}
}

func TestProcessTurn_CancelledWritesNothing(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)
	ctx, cancel := context.WithCancel(context.Background())
	h.script.hooks["answer-direct"] = cancel
	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		text("reformulate", "What is a queue?").
		text("classify-retrieval", "false").
		text("answer-direct", "A queue is first-in, first-out.")

	_, err := h.proc.ProcessTurn(ctx, u.UserID, "What is a queue?", nil)
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	assert.Empty(t, h.history(t, u.UserID))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessTurn_DocumentTurnAndTray(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)
	tray := attachment.NewTray(attachment.New(2048))
	require.NoError(t, tray.Add(attachment.Attachment{Name: "bst.png", MIMEType: "image/png", Data: pngBytes(t)}))

	h.script.
		text("classify-language", "english").
		text("classify-content", "dsa").
		on("document-validate", llm.MockJSON(map[string]any{"classification": "DSA_CONTENT_HIGH_CONFIDENCE", "reason": "a tree"})).
		text("document-answer", "This picture shows a binary search tree, like a family tree where smaller names go left.")

	r := h.turn(t, u.UserID, "Can you explain this?", tray.Take()...)
	assert.Equal(t, KindAnswer, r.Kind)
	assert.Equal(t, RouteDocumentAnswer, r.Route)
	assert.Zero(t, tray.Len(), "attachments do not carry over")
	assert.Equal(t, 1, h.script.count("classify-content"), "the caption is classified before the upload is validated")
	assert.Zero(t, h.script.count("reformulate"))

	msgs := h.history(t, u.UserID)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "[Attached: bst.png]")
	require.Len(t, msgs[0].Images(), 1)
	assert.Equal(t, "image/png", msgs[0].Images()[0].MIMEType)
}

func TestProcessTurn_DocumentRedirect(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)
	h.script.on("document-validate", llm.MockJSON(map[string]any{"classification": "NO_DSA_CONTENT", "reason": "a cat"}))

	r := h.turn(t, u.UserID, "", attachment.Attachment{Name: "cat.png", MIMEType: "image/png", Data: pngBytes(t)})
	assert.Equal(t, KindRefusal, r.Kind)
	assert.Zero(t, h.script.count("document-answer"))
	assert.Zero(t, h.script.count("classify-language"), "an empty caption is not classified")
}

func TestProcessTurn_OffTopicCaptionWithUpload(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)
	h.script.
		text("classify-language", "english").
		text("classify-content", "other")

	r := h.turn(t, u.UserID, "What's the weather like?", attachment.Attachment{Name: "sky.png", MIMEType: "image/png", Data: pngBytes(t)})
	assert.Equal(t, KindRefusal, r.Kind)
	assert.Equal(t, RouteRefuseOffTopic, r.Route)
	assert.Equal(t, offTopicMessage, r.Text)
	assert.Zero(t, h.script.count("document-validate"))
}

func TestProcessTurn_AttachmentTooLarge(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelBeginner)

	big := attachment.Attachment{Name: "huge.png", MIMEType: "image/png", Data: make([]byte, 4096)}
	r := h.turn(t, u.UserID, "look", big)
	assert.Equal(t, KindRefusal, r.Kind)
	assert.Contains(t, r.Text, "2.0 KiB")
	assert.Empty(t, h.history(t, u.UserID))
	assert.Zero(t, h.script.count("classify-language"))
}

func TestProcessTurn_AnalysisAfterTwoTurns(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, learner.LevelIntermediate)
	ctx := context.Background()
	started, err := h.st.TouchLastAnalysisAt(ctx, u.UserID)
	require.NoError(t, err)

	for _, q := range []string{"How does quicksort work?", "Is quicksort stable?"} {
		h.script.
			text("classify-language", "english").
			text("classify-content", "dsa").
			text("reformulate", q).
			text("classify-retrieval", "false").
			text("answer-direct", "answer")
	}
	h.script.on("proficiency", llm.MockJSON(map[string]any{
		"current_level":  "intermediate",
		"recommendation": "Maintain",
		"confidence":     0.7,
		"topics":         map[string]any{"sorting_algorithms": []string{"quicksort"}},
	}))

	h.turn(t, u.UserID, "How does quicksort work?")
	assert.Zero(t, h.script.count("proficiency"))

	r := h.turn(t, u.UserID, "Is quicksort stable?")
	assert.Equal(t, 1, h.script.count("proficiency"))
	assert.Nil(t, r.LevelChange)

	a, err := h.st.GetAnalysis(ctx, u.UserID)
	require.NoError(t, err)
	assert.True(t, a.Topics.Equal(learner.Topics{"sorting_algorithms": {"quicksort"}}))
	assert.True(t, a.LastAnalysisAt.After(started))
	lvl, _ := h.st.GetLevel(ctx, u.UserID)
	assert.Equal(t, learner.LevelIntermediate, lvl)
}

func TestProfileRecommendationsAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fresh := h.user(t, learner.LevelUnknown)
	_, err := h.proc.Recommendations(ctx, fresh.UserID)
	assert.ErrorIs(t, err, ErrNotAssessed)

	u, err := h.st.CreateUser(ctx, "lin@example.com", "lin", nil)
	require.NoError(t, err)
	require.NoError(t, h.st.SetLevel(ctx, u.UserID, learner.LevelBeginner))
	require.NoError(t, h.st.SetTopics(ctx, u.UserID, learner.Topics{"arrays": {"indexing"}}))

	prof, err := h.proc.Profile(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, learner.LevelBeginner, prof.Level)
	assert.Contains(t, prof.Topics, "arrays")

	h.script.on("recommend", llm.MockJSON(map[string]any{"recommendations": []map[string]any{
		{"topic": "linked_lists", "description": "d", "rationale": "r", "difficulty": "beginner"},
	}}))
	recs, err := h.proc.Recommendations(ctx, u.UserID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "linked_lists", recs[0].Topic)

	require.NoError(t, h.st.AppendMessage(ctx, &store.Message{UserID: u.UserID, Role: store.RoleUser, Content: "hi"}))
	require.NoError(t, h.proc.ClearHistory(ctx, u.UserID))
	assert.Empty(t, h.history(t, u.UserID))
	lvl, _ := h.st.GetLevel(ctx, u.UserID)
	assert.Equal(t, learner.LevelBeginner, lvl)

	assert.ErrorIs(t, h.proc.ClearHistory(ctx, "nope"), store.ErrNotFound)
}

func TestTransitionsCoverHandlers(t *testing.T) {
	for s := range handlers {
		assert.NotEmpty(t, transitions[s], "state %s has no successors", s)
	}
}
