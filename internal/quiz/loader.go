package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terra-clan/studyhub/internal/datasource"
	"github.com/terra-clan/studyhub/internal/models"
	"github.com/terra-clan/studyhub/internal/validation"
)

// Loader fetches the question list each time a quiz starts
type Loader struct {
	source datasource.Source
}

// NewLoader creates a loader over source
func NewLoader(source datasource.Source) *Loader {
	return &Loader{source: source}
}

// Questions fetches, validates and returns the question list.
// Questions that fail to decode, miss a prompt, answer or options, or whose
// answer is not one of the options are skipped.
func (l *Loader) Questions(ctx context.Context) ([]models.QuizQuestion, error) {
	doc, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quiz: %w", err)
	}

	records, err := doc.Records()
	if err != nil {
		return nil, err
	}

	questions := make([]models.QuizQuestion, 0, len(records))
	for i, r := range records {
		var q models.QuizQuestion
		if err := r.Decode(&q); err != nil {
			slog.Warn("skipping undecodable quiz question", "index", i, "error", err)
			continue
		}
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.TrimSpace(q.Answer)
		for j, o := range q.Options {
			q.Options[j] = strings.TrimSpace(o)
		}
		if err := validation.Struct(&q); err != nil {
			slog.Warn("skipping invalid quiz question", "index", i, "error", err)
			continue
		}
		if !hasOption(q.Options, q.Answer) {
			slog.Warn("skipping quiz question whose answer is not an option", "index", i, "answer", q.Answer)
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return questions, nil
}

func hasOption(options []string, answer string) bool {
	for _, o := range options {
		if o == answer {
			return true
		}
	}
	return false
}
