package models

import (
	"encoding/json"
	"time"
)

// QuizQuestion is one multiple-choice question
type QuizQuestion struct {
	Question    string   `json:"question" yaml:"question" validate:"required"`
	Options     []string `json:"options" yaml:"options" validate:"min=1"`
	Answer      string   `json:"answer" yaml:"answer" validate:"required"`
	Topic       string   `json:"topic,omitempty" yaml:"topic,omitempty"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// quizQuestionFile accepts both the current field names and the short
// {q, options, a} form written by older generators.
type quizQuestionFile struct {
	Question    string   `json:"question" yaml:"question"`
	Q           string   `json:"q" yaml:"q"`
	Options     []string `json:"options" yaml:"options"`
	Answer      string   `json:"answer" yaml:"answer"`
	A           string   `json:"a" yaml:"a"`
	Topic       string   `json:"topic" yaml:"topic"`
	Explanation string   `json:"explanation" yaml:"explanation"`
}

func (f quizQuestionFile) normalize() QuizQuestion {
	q := QuizQuestion{
		Question:    f.Question,
		Options:     f.Options,
		Answer:      f.Answer,
		Topic:       f.Topic,
		Explanation: f.Explanation,
	}
	if q.Question == "" {
		q.Question = f.Q
	}
	if q.Answer == "" {
		q.Answer = f.A
	}
	if q.Options == nil {
		q.Options = []string{}
	}
	return q
}

// UnmarshalJSON decodes either question shape
func (q *QuizQuestion) UnmarshalJSON(data []byte) error {
	var f quizQuestionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*q = f.normalize()
	return nil
}

// UnmarshalYAML decodes either question shape
func (q *QuizQuestion) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var f quizQuestionFile
	if err := unmarshal(&f); err != nil {
		return err
	}
	*q = f.normalize()
	return nil
}

// QuizStatus is the runner state name
type QuizStatus string

const (
	QuizAsking    QuizStatus = "asking"
	QuizCompleted QuizStatus = "completed"
)

// QuizState is the externally visible snapshot of a quiz session
type QuizState struct {
	ID        string     `json:"id"`
	Status    QuizStatus `json:"status"`
	Index     int        `json:"index"`
	Total     int        `json:"total"`
	Score     int        `json:"score"`
	Question  string     `json:"question,omitempty"`
	Options   []string   `json:"options,omitempty"`
	StartedAt time.Time  `json:"started_at"`
}

// AnswerResponse reports the outcome of one answer
type AnswerResponse struct {
	Correct  bool      `json:"correct"`
	Expected string    `json:"expected"`
	State    QuizState `json:"state"`
}

// AnswerRequest carries a learner's choice, as option text or option index
type AnswerRequest struct {
	Choice string `json:"choice"`
	Index  *int   `json:"index,omitempty"`
}
