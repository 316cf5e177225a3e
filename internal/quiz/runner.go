// Package quiz runs multiple-choice quizzes and reports completions to
// the learner's progress.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/terra-clan/studyhub/internal/metrics"
	"github.com/terra-clan/studyhub/internal/models"
)

var (
	ErrQuizCompleted = errors.New("quiz already completed")
	ErrNoQuestions   = errors.New("no quizzes available")
	ErrInvalidChoice = errors.New("invalid choice")
)

// Recorder receives the quizzes event when a quiz ends with a nonzero score
type Recorder interface {
	Record(ctx context.Context, event models.EventType) ([]models.Badge, error)
}

// Runner walks a learner through a fixed list of questions.
// It is either asking question Index or completed.
type Runner struct {
	mu        sync.Mutex
	id        string
	learnerID string
	questions []models.QuizQuestion
	recorder  Recorder
	now       func() time.Time

	index       int
	score       int
	startedAt   time.Time
	completedAt time.Time
}

// NewRunner starts a quiz at the first question
func NewRunner(id, learnerID string, questions []models.QuizQuestion, recorder Recorder) (*Runner, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	qs := make([]models.QuizQuestion, len(questions))
	copy(qs, questions)

	r := &Runner{
		id:        id,
		learnerID: learnerID,
		questions: qs,
		recorder:  recorder,
		now:       time.Now,
	}
	r.startedAt = r.now().UTC()
	return r, nil
}

// ID returns the session identifier
func (r *Runner) ID() string { return r.id }

// LearnerID returns the learner the quiz belongs to
func (r *Runner) LearnerID() string { return r.learnerID }

// resolveChoice turns an index choice into option text
func (r *Runner) resolveChoice(req models.AnswerRequest) (string, error) {
	if req.Index == nil {
		return strings.TrimSpace(req.Choice), nil
	}
	options := r.questions[r.index].Options
	i := *req.Index
	if i < 0 || i >= len(options) {
		return "", fmt.Errorf("%w: index %d out of range", ErrInvalidChoice, i)
	}
	return strings.TrimSpace(options[i]), nil
}

// Answer scores the choice against the current question and advances.
// After the last question the quiz completes and, if the score is
// nonzero, one quizzes event is recorded.
func (r *Runner) Answer(ctx context.Context, req models.AnswerRequest) (models.AnswerResponse, error) {
	r.mu.Lock()
	if r.completedLocked() {
		r.mu.Unlock()
		return models.AnswerResponse{}, ErrQuizCompleted
	}

	choice, err := r.resolveChoice(req)
	if err != nil {
		r.mu.Unlock()
		return models.AnswerResponse{}, err
	}

	expected := r.questions[r.index].Answer
	correct := choice == strings.TrimSpace(expected)
	if correct {
		r.score++
	}
	r.index++

	completed := r.completedLocked()
	if completed {
		r.completedAt = r.now().UTC()
	}
	score := r.score
	state := r.stateLocked()
	r.mu.Unlock()

	if completed {
		r.finish(ctx, score)
	}

	return models.AnswerResponse{Correct: correct, Expected: expected, State: state}, nil
}

func (r *Runner) finish(ctx context.Context, score int) {
	metrics.QuizzesCompleted.Inc()
	slog.Info("quiz completed",
		"quiz_id", r.id,
		"learner_id", r.learnerID,
		"score", score,
		"total", len(r.questions),
	)

	if score == 0 || r.recorder == nil {
		return
	}
	if _, err := r.recorder.Record(ctx, models.EventQuizzes); err != nil {
		slog.Error("failed to record quiz completion", "quiz_id", r.id, "error", err)
	}
}

func (r *Runner) completedLocked() bool {
	return r.index >= len(r.questions)
}

// Completed reports whether every question has been answered
func (r *Runner) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completedLocked()
}

// CompletedAt returns when the quiz completed, or the zero time
func (r *Runner) CompletedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completedAt
}

// State returns a snapshot suitable for rendering
func (r *Runner) State() models.QuizState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Runner) stateLocked() models.QuizState {
	st := models.QuizState{
		ID:        r.id,
		Status:    models.QuizAsking,
		Index:     r.index,
		Total:     len(r.questions),
		Score:     r.score,
		StartedAt: r.startedAt,
	}
	if r.completedLocked() {
		st.Status = models.QuizCompleted
		return st
	}
	q := r.questions[r.index]
	st.Question = q.Question
	st.Options = append([]string(nil), q.Options...)
	return st
}
