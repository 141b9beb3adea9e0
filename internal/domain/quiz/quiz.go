package quiz

import (
	"errors"
	"fmt"
	"strings"
)

// Question is a single multiple-choice question. Immutable once produced
// by extraction: its ID is assigned over the canonical (unshuffled) order
// and stays attached to the question through every later shuffle.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// QuizData is one extracted quiz. Its ID is the content-derived signature,
// so re-importing the same material resolves to the same cache entry.
type QuizData struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// AssignIDs gives every question its permanent identity, derived from the
// quiz signature and the question's position at parse time.
func AssignIDs(quizID string, qs []Question) {
	for i := range qs {
		qs[i].ID = fmt.Sprintf("%s-q-%d", quizID, i)
	}
}

// Validate checks the shape the extraction collaborator must deliver.
// Any violation is surfaced as a recoverable extraction failure.
func Validate(q QuizData) error {
	if len(q.Questions) == 0 {
		return errors.New("quiz has no questions")
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Text) == "" {
			return fmt.Errorf("question %d has no text", i)
		}
		if len(question.Options) < 2 {
			return fmt.Errorf("question %d has fewer than two options", i)
		}
		if !containsOption(question.Options, question.CorrectAnswer) {
			return fmt.Errorf("question %d: correct answer is not one of its options", i)
		}
	}
	return nil
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}
