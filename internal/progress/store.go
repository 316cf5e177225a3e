// Package progress tracks per-learner action counters and the badges
// they unlock.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/studyhub/internal/kv"
	"github.com/terra-clan/studyhub/internal/metrics"
	"github.com/terra-clan/studyhub/internal/models"
)

// ErrUnknownEvent is returned by Record for event types with no counter
var ErrUnknownEvent = errors.New("unknown event type")

// Observer is told about every badge exactly once, after it is unlocked.
// badges is the full unlocked list in insertion order.
type Observer interface {
	BadgeUnlocked(learnerID string, badge models.Badge, badges []models.Badge)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(learnerID string, badge models.Badge, badges []models.Badge)

func (f ObserverFunc) BadgeUnlocked(learnerID string, badge models.Badge, badges []models.Badge) {
	f(learnerID, badge, badges)
}

type notification struct {
	badge  models.Badge
	badges []models.Badge
}

// Store owns one learner's counters and unlocked badges.
//
// In-memory state is authoritative. A failed write marks the affected key
// dirty and is retried on the next mutation or Flush; it never reaches the
// caller of Record or Unlock.
type Store struct {
	mu        sync.Mutex
	learnerID string
	kv        kv.Store
	observers []Observer
	now       func() time.Time

	counters models.Counters
	badges   []models.Badge
	unlocked map[string]struct{}

	dirtyCounters bool
	dirtyBadges   bool
	lastUsed      time.Time
}

// Open loads the learner's persisted state. Unreadable values are logged
// and replaced by empty state; backend errors are returned.
func Open(ctx context.Context, learnerID string, store kv.Store, observers ...Observer) (*Store, error) {
	s := &Store{
		learnerID: learnerID,
		kv:        store,
		observers: observers,
		now:       time.Now,
		counters:  models.Counters{},
		unlocked:  make(map[string]struct{}),
	}
	s.lastUsed = s.now()

	raw, err := store.Get(ctx, learnerID, kv.KeyProgress)
	switch {
	case err == nil:
		counters, derr := decodeCounters(raw)
		if derr != nil {
			slog.Warn("discarding unreadable progress", "learner_id", learnerID, "error", derr)
		} else {
			s.counters = counters
		}
	case !errors.Is(err, kv.ErrNotFound):
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	raw, err = store.Get(ctx, learnerID, kv.KeyBadges)
	switch {
	case err == nil:
		badges, derr := decodeBadges(raw)
		if derr != nil {
			slog.Warn("discarding unreadable badges", "learner_id", learnerID, "error", derr)
		}
		for _, b := range badges {
			if _, seen := s.unlocked[b.Name]; seen {
				continue
			}
			s.unlocked[b.Name] = struct{}{}
			s.badges = append(s.badges, b)
		}
	case !errors.Is(err, kv.ErrNotFound):
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}

	return s, nil
}

// LearnerID returns the owner of this store
func (s *Store) LearnerID() string {
	return s.learnerID
}

// Record increments the counter for event, persists it and evaluates the
// unlock rules. It returns the badges unlocked by this call.
func (s *Store) Record(ctx context.Context, event models.EventType) ([]models.Badge, error) {
	if !event.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	s.mu.Lock()
	s.counters[event]++
	count := s.counters[event]
	s.dirtyCounters = true
	s.persistLocked(ctx)

	var (
		unlocked []models.Badge
		pending  []notification
	)
	for _, rule := range Rules {
		if !rule.matches(event, count) {
			continue
		}
		if n, ok := s.unlockLocked(ctx, rule.Name, rule.Description); ok {
			unlocked = append(unlocked, n.badge)
			pending = append(pending, n)
		}
	}
	s.mu.Unlock()

	metrics.ProgressEvents.WithLabelValues(string(event)).Inc()
	s.notify(pending)

	slog.Debug("progress recorded",
		"learner_id", s.learnerID,
		"event_type", event,
		"count", count,
		"unlocked", len(unlocked),
	)

	return unlocked, nil
}

// Unlock adds a badge unless one with the same name is already unlocked.
// It reports whether the badge was added.
func (s *Store) Unlock(ctx context.Context, name, description string) bool {
	s.mu.Lock()
	n, ok := s.unlockLocked(ctx, name, description)
	s.mu.Unlock()

	if ok {
		s.notify([]notification{n})
	}
	return ok
}

func (s *Store) unlockLocked(ctx context.Context, name, description string) (notification, bool) {
	if _, ok := s.unlocked[name]; ok {
		return notification{}, false
	}

	badge := models.Badge{Name: name, Description: description, UnlockedAt: s.now().UTC()}
	s.unlocked[name] = struct{}{}
	s.badges = append(s.badges, badge)
	s.dirtyBadges = true
	s.persistLocked(ctx)

	metrics.BadgesUnlocked.WithLabelValues(name).Inc()
	slog.Info("badge unlocked", "learner_id", s.learnerID, "badge", name)

	return notification{badge: badge, badges: s.badgesLocked()}, true
}

func (s *Store) notify(pending []notification) {
	for _, n := range pending {
		for _, o := range s.observers {
			o.BadgeUnlocked(s.learnerID, n.badge, n.badges)
		}
	}
}

// Badges returns the unlocked badges in the order they were unlocked
func (s *Store) Badges() []models.Badge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badgesLocked()
}

func (s *Store) badgesLocked() []models.Badge {
	out := make([]models.Badge, len(s.badges))
	copy(out, s.badges)
	return out
}

// Counters returns a copy of the current counters
func (s *Store) Counters() models.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters.Clone()
}

// touch marks the store as in use
func (s *Store) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}

// idle reports whether the store is clean and unused since before cutoff
func (s *Store) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.dirtyCounters && !s.dirtyBadges && s.lastUsed.Before(cutoff)
}

// Dirty reports whether some state has not reached the kv store yet
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyCounters || s.dirtyBadges
}

// Flush retries any pending writes and returns the first error
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// persistLocked writes every dirty key. Errors are logged and counted
// and the key stays dirty.
func (s *Store) persistLocked(ctx context.Context) error {
	var firstErr error

	if s.dirtyCounters {
		data, encErr := encodeCounters(s.counters)
		if err := s.writeLocked(ctx, kv.KeyProgress, data, encErr); err != nil {
			firstErr = err
		} else {
			s.dirtyCounters = false
		}
	}

	if s.dirtyBadges {
		data, encErr := encodeBadges(s.badges)
		if err := s.writeLocked(ctx, kv.KeyBadges, data, encErr); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			s.dirtyBadges = false
		}
	}

	return firstErr
}

func (s *Store) writeLocked(ctx context.Context, key string, data []byte, encErr error) error {
	err := encErr
	if err == nil {
		err = s.kv.Set(ctx, s.learnerID, key, data)
	}
	if err != nil {
		metrics.PersistFailures.WithLabelValues(key).Inc()
		slog.Warn("failed to persist progress state, will retry",
			"learner_id", s.learnerID,
			"key", key,
			"error", err,
		)
		return err
	}
	return nil
}
