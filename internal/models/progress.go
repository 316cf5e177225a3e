package models

import "time"

// EventType tags a completed learner action
type EventType string

const (
	EventTopics  EventType = "topics"  // Opened or finished a topic/resource
	EventQuizzes EventType = "quizzes" // Finished a quiz with a nonzero score
)

// Valid reports whether the event type is one the progress store counts
func (e EventType) Valid() bool {
	return e == EventTopics || e == EventQuizzes
}

// Counters maps an event type to the number of times it was recorded.
// Keys the current version does not know about are kept as-is.
type Counters map[EventType]int

// Clone returns an independent copy of the counters
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Badge is a permanently unlocked achievement marker
type Badge struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlocked_at,omitempty"`
}

// ProgressResponse is returned by the progress read endpoint
type ProgressResponse struct {
	LearnerID string   `json:"learner_id"`
	Counters  Counters `json:"counters"`
	Badges    []Badge  `json:"badges"`
}

// RecordResponse is returned after recording an event
type RecordResponse struct {
	Counters Counters `json:"counters"`
	Unlocked []Badge  `json:"unlocked"`
}
