package progress

import "github.com/terra-clan/studyhub/internal/models"

// Rule unlocks a badge once the counter for Event reaches Threshold
type Rule struct {
	Event       models.EventType
	Threshold   int
	Name        string
	Description string
}

// Rules are evaluated after every increment, in this order
var Rules = []Rule{
	{Event: models.EventTopics, Threshold: 1, Name: "First Reader", Description: "Opened your first resource!"},
	{Event: models.EventQuizzes, Threshold: 1, Name: "Quiz Starter", Description: "Completed your first quiz!"},
	{Event: models.EventTopics, Threshold: 3, Name: "Data Enthusiast", Description: "Completed 3 topics!"},
	{Event: models.EventQuizzes, Threshold: 5, Name: "Quiz Master", Description: "Completed 5 quizzes!"},
}

// matches reports whether the rule fires for an event at the given count
func (r Rule) matches(event models.EventType, count int) bool {
	return r.Event == event && count >= r.Threshold
}
