package quiz

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/studyhub/internal/metrics"
)

// ErrSessionNotFound is returned for unknown or foreign session IDs
var ErrSessionNotFound = errors.New("quiz session not found")

// Sessions keeps the running quizzes in memory, keyed by a random ID
type Sessions struct {
	mu      sync.RWMutex
	loader  *Loader
	ttl     time.Duration
	runners map[string]*Runner
	now     func() time.Time
}

// NewSessions creates an empty session table. Completed sessions are kept
// for ttl and abandoned ones for twice as long.
func NewSessions(loader *Loader, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		loader:  loader,
		ttl:     ttl,
		runners: make(map[string]*Runner),
		now:     time.Now,
	}
}

// Start fetches the questions and opens a new quiz for learnerID
func (s *Sessions) Start(ctx context.Context, learnerID string, recorder Recorder) (*Runner, error) {
	questions, err := s.loader.Questions(ctx)
	if err != nil {
		return nil, err
	}

	r, err := NewRunner(uuid.New().String(), learnerID, questions, recorder)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.runners[r.ID()] = r
	n := len(s.runners)
	s.mu.Unlock()

	metrics.QuizSessionsActive.Set(float64(n))
	slog.Info("quiz started", "quiz_id", r.ID(), "learner_id", learnerID, "questions", len(questions))
	return r, nil
}

// Get returns the learner's session with the given ID
func (s *Sessions) Get(learnerID, id string) (*Runner, error) {
	s.mu.RLock()
	r, ok := s.runners[id]
	s.mu.RUnlock()
	if !ok || r.LearnerID() != learnerID {
		return nil, ErrSessionNotFound
	}
	return r, nil
}

// Len returns the number of held sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runners)
}

// Evict drops sessions that completed more than ttl ago, and unfinished
// ones started more than twice ttl ago. It returns how many were removed.
func (s *Sessions) Evict() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for id, r := range s.runners {
		if s.expired(r, now) {
			delete(s.runners, id)
			removed++
		}
	}
	n := len(s.runners)
	s.mu.Unlock()

	metrics.QuizSessionsActive.Set(float64(n))
	if removed > 0 {
		slog.Info("evicted quiz sessions", "count", removed, "remaining", n)
	}
	return removed
}

func (s *Sessions) expired(r *Runner, now time.Time) bool {
	if done := r.CompletedAt(); !done.IsZero() {
		return now.Sub(done) > s.ttl
	}
	return now.Sub(r.State().StartedAt) > 2*s.ttl
}
