package quiz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/studyhub/internal/datasource"
	"github.com/terra-clan/studyhub/internal/models"
)

// countingRecorder counts Record calls per event type
type countingRecorder struct {
	mu     sync.Mutex
	events map[models.EventType]int
}

func (c *countingRecorder) Record(ctx context.Context, event models.EventType) ([]models.Badge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = make(map[models.EventType]int)
	}
	c.events[event]++
	return nil, nil
}

func (c *countingRecorder) count(event models.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[event]
}

type docSource struct {
	body string
	err  error
}

func (s docSource) Fetch(ctx context.Context) (datasource.Document, error) {
	if s.err != nil {
		return datasource.Document{}, s.err
	}
	return datasource.Document{Data: []byte(s.body), Format: datasource.FormatJSON, Origin: "test"}, nil
}

var twoQuestions = []models.QuizQuestion{
	{Question: "Which step comes first in Data Analytics?", Options: []string{"Data Cleaning", "Data Collection", "Modeling"}, Answer: "Data Collection"},
	{Question: "Which chart is best for trends over time?", Options: []string{"Bar", "Pie", "Line"}, Answer: "Line"},
}

func answerText(t *testing.T, r *Runner, choice string) models.AnswerResponse {
	t.Helper()
	resp, err := r.Answer(context.Background(), models.AnswerRequest{Choice: choice})
	if err != nil {
		t.Fatalf("answer %q: %v", choice, err)
	}
	return resp
}

func TestPerfectQuizRecordsOnce(t *testing.T) {
	rec := &countingRecorder{}
	r, err := NewRunner("q1", "learner", twoQuestions, rec)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	first := answerText(t, r, "Data Collection")
	if !first.Correct || first.State.Status != models.QuizAsking || first.State.Index != 1 {
		t.Fatalf("unexpected first answer %+v", first)
	}
	if rec.count(models.EventQuizzes) != 0 {
		t.Fatal("recorded before completion")
	}

	last := answerText(t, r, "Line")
	if last.State.Status != models.QuizCompleted || last.State.Score != 2 || last.State.Total != 2 {
		t.Fatalf("expected completed 2/2, got %+v", last.State)
	}
	if got := rec.count(models.EventQuizzes); got != 1 {
		t.Fatalf("expected exactly one quizzes record, got %d", got)
	}

	if _, err := r.Answer(context.Background(), models.AnswerRequest{Choice: "Line"}); !errors.Is(err, ErrQuizCompleted) {
		t.Fatalf("expected ErrQuizCompleted, got %v", err)
	}
	if got := rec.count(models.EventQuizzes); got != 1 {
		t.Fatalf("answer after completion recorded again: %d", got)
	}
}

func TestZeroScoreDoesNotRecord(t *testing.T) {
	rec := &countingRecorder{}
	r, _ := NewRunner("q1", "learner", twoQuestions, rec)

	answerText(t, r, "Modeling")
	resp := answerText(t, r, "Pie")

	if resp.Correct || resp.Expected != "Line" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.State.Score != 0 || !r.Completed() {
		t.Fatalf("expected completed with score 0, got %+v", resp.State)
	}
	if rec.count(models.EventQuizzes) != 0 {
		t.Fatal("zero score must not be recorded")
	}
}

func TestAnswerByIndex(t *testing.T) {
	rec := &countingRecorder{}
	r, _ := NewRunner("q1", "learner", twoQuestions, rec)

	one := 1
	resp, err := r.Answer(context.Background(), models.AnswerRequest{Index: &one})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !resp.Correct {
		t.Fatalf("expected index 1 to be correct, got %+v", resp)
	}

	bad := 7
	if _, err := r.Answer(context.Background(), models.AnswerRequest{Index: &bad}); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
	if r.State().Index != 1 {
		t.Fatal("invalid choice must not advance the quiz")
	}
}

func TestStateShowsCurrentQuestion(t *testing.T) {
	r, _ := NewRunner("q1", "learner", twoQuestions, nil)

	st := r.State()
	if st.Question != twoQuestions[0].Question || len(st.Options) != 3 {
		t.Fatalf("unexpected state %+v", st)
	}

	st.Options[0] = "mutated"
	if r.State().Options[0] != "Data Cleaning" {
		t.Fatal("state snapshot shares the options slice")
	}
}

func TestNewRunnerWithoutQuestions(t *testing.T) {
	if _, err := NewRunner("q1", "learner", nil, nil); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestLoaderAcceptsLegacyShapeAndSkipsInvalid(t *testing.T) {
	loader := NewLoader(docSource{body: `[
		{"q":"Legacy?","options":["yes","no"],"a":"yes"},
		{"question":"Current?","options":["a","b"],"answer":"b"},
		{"question":"","options":["a"],"answer":"a"},
		{"question":"No options?","answer":"x"}
	]`})

	qs, err := loader.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 2 || qs[0].Question != "Legacy?" || qs[0].Answer != "yes" || qs[1].Answer != "b" {
		t.Fatalf("unexpected questions %+v", qs)
	}
}

func TestLoaderEmptyDocument(t *testing.T) {
	_, err := NewLoader(docSource{body: `[]`}).Questions(context.Background())
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestLoaderFetchError(t *testing.T) {
	_, err := NewLoader(docSource{err: errors.New("boom")}).Questions(context.Background())
	if err == nil || errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestSessionsStartGetAndEvict(t *testing.T) {
	loader := NewLoader(docSource{body: `[{"question":"Q","options":["a","b"],"answer":"a"}]`})
	sessions := NewSessions(loader, time.Minute)
	ctx := context.Background()

	r, err := sessions.Start(ctx, "alice", &countingRecorder{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if got, err := sessions.Get("alice", r.ID()); err != nil || got != r {
		t.Fatalf("get: %v", err)
	}
	if _, err := sessions.Get("bob", r.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected foreign session to be hidden, got %v", err)
	}
	if _, err := sessions.Get("alice", "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	answerText(t, r, "a")

	if removed := sessions.Evict(); removed != 0 {
		t.Fatalf("evicted a fresh session")
	}

	sessions.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if removed := sessions.Evict(); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected empty table, got %d", sessions.Len())
	}
}

func TestSessionsEvictAbandoned(t *testing.T) {
	loader := NewLoader(docSource{body: `[{"question":"Q","options":["a"],"answer":"a"}]`})
	sessions := NewSessions(loader, time.Minute)

	if _, err := sessions.Start(context.Background(), "alice", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	sessions.now = func() time.Time { return time.Now().Add(90 * time.Second) }
	if removed := sessions.Evict(); removed != 0 {
		t.Fatal("unfinished session evicted before twice the ttl")
	}

	sessions.now = func() time.Time { return time.Now().Add(3 * time.Minute) }
	if removed := sessions.Evict(); removed != 1 {
		t.Fatalf("expected abandoned session eviction, got %d", removed)
	}
}

func TestLoaderTrimsOptionsSoIndexAnswersMatch(t *testing.T) {
	loader := NewLoader(docSource{body: `[{"question":"Trend chart?","options":["Bar ","  Line "],"answer":"Line "}]`})
	qs, err := loader.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if qs[0].Options[1] != "Line" || qs[0].Answer != "Line" {
		t.Fatalf("expected trimmed question, got %+v", qs[0])
	}

	rec := &countingRecorder{}
	r, _ := NewRunner("q1", "learner", qs, rec)
	one := 1
	resp, err := r.Answer(context.Background(), models.AnswerRequest{Index: &one})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !resp.Correct || resp.State.Score != 1 {
		t.Fatalf("expected a correct answer, got %+v", resp)
	}
	if rec.count(models.EventQuizzes) != 1 {
		t.Fatal("expected the completed quiz to be recorded")
	}
}

func TestRunnerTrimsUnloadedOptions(t *testing.T) {
	qs := []models.QuizQuestion{{Question: "Q", Options: []string{"a", "b "}, Answer: "b "}}
	r, _ := NewRunner("q1", "learner", qs, nil)
	one := 1
	resp, err := r.Answer(context.Background(), models.AnswerRequest{Index: &one})
	if err != nil || !resp.Correct {
		t.Fatalf("expected correct answer, got %+v, %v", resp, err)
	}
}

func TestLoaderSkipsUnanswerableAndUndecodableQuestions(t *testing.T) {
	loader := NewLoader(docSource{body: `[
		{"question":"Answer missing from options?","options":["a","b"],"answer":"c"},
		{"question":"Broken options","options":"a","answer":"a"},
		{"question":"Fine?","options":["yes","no"],"answer":"yes"}
	]`})

	qs, err := loader.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 1 || qs[0].Question != "Fine?" {
		t.Fatalf("unexpected questions %+v", qs)
	}
}
