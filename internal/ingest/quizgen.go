package ingest

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/terra-clan/studyhub/internal/models"
)

const (
	maxKeywords         = 10
	maxQuestionsPerText = 4
	minSentenceLen      = 30
	questionPrefixLen   = 120
	distractors         = 3
)

var (
	keywordPattern  = regexp.MustCompile(`\b[A-Z][a-zA-Z]{3,}\b`)
	sentenceEndings = regexp.MustCompile(`[.!?]\s+`)
)

// DefaultQuestions is written when nothing can be generated and no quiz
// file exists yet
var DefaultQuestions = []models.QuizQuestion{
	{
		Question: "Which step comes first in Data Analytics?",
		Options:  []string{"Data Cleaning", "Data Collection", "Modeling"},
		Answer:   "Data Collection",
	},
	{
		Question: "Which chart is best for trends over time?",
		Options:  []string{"Bar", "Pie", "Line"},
		Answer:   "Line",
	},
}

// keywords returns up to ten distinct capitalized words in order of
// first appearance
func keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range keywordPattern.FindAllString(text, -1) {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// sentences splits text after terminal punctuation and keeps the long ones
func sentences(text string) []string {
	var out []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(text[start:end]); len(s) > minSentenceLen {
			out = append(out, s)
		}
	}
	for _, loc := range sentenceEndings.FindAllStringIndex(text, -1) {
		flush(loc[0] + 1)
		start = loc[1]
	}
	flush(len(text))
	return out
}

// GenerateQuestions builds cloze-style questions from extracted text
func GenerateQuestions(topic, text string, rng *rand.Rand) []models.QuizQuestion {
	words := keywords(text)
	if len(words) == 0 {
		return nil
	}

	var out []models.QuizQuestion
	for i, s := range sentences(text) {
		if i == maxQuestionsPerText {
			break
		}
		answer := words[i%len(words)]
		options := []string{answer}
		for _, w := range words {
			if len(options) > distractors {
				break
			}
			if w != answer {
				options = append(options, w)
			}
		}
		rng.Shuffle(len(options), func(a, b int) { options[a], options[b] = options[b], options[a] })

		out = append(out, models.QuizQuestion{
			Question:    truncate(s, questionPrefixLen) + "...",
			Options:     options,
			Answer:      answer,
			Topic:       topic,
			Explanation: "Auto-generated",
		})
	}
	return out
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
