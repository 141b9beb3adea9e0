// Package aggregate derives cross-quiz views from store snapshots.
// Both views are pure functions of (history, cache, flags) and are
// recomputed on demand; nothing here is a second source of truth.
package aggregate

import (
	"sort"

	"github.com/quizforge/backend/internal/domain/attempt"
	"github.com/quizforge/backend/internal/domain/quiz"
)

// QuizMistakes is the set of questions ever answered incorrectly across
// all attempts of one quiz, in canonical question order.
type QuizMistakes struct {
	QuizID    string          `json:"quiz_id"`
	Title     string          `json:"title"`
	Questions []quiz.Question `json:"questions"`
}

// MistakeBank collects, per quiz, every question the user explicitly
// answered wrong at least once. Skipped questions don't count: only a
// real wrong selection earns a place here. Quizzes with no mistakes, or
// missing from the cache, are dropped. Output order is deterministic.
func MistakeBank(history map[string][]attempt.Attempt, cache map[string]quiz.QuizData) []QuizMistakes {
	quizIDs := make([]string, 0, len(history))
	for id := range history {
		quizIDs = append(quizIDs, id)
	}
	sort.Strings(quizIDs)

	var out []QuizMistakes
	for _, quizID := range quizIDs {
		qd, ok := cache[quizID]
		if !ok {
			continue
		}

		missed := make(map[string]struct{})
		for _, att := range history[quizID] {
			for _, ans := range att.Answers {
				if !ans.IsCorrect && ans.SelectedOption != attempt.NotAnswered {
					missed[ans.QuestionID] = struct{}{}
				}
			}
		}

		var questions []quiz.Question
		for _, q := range qd.Questions {
			if _, ok := missed[q.ID]; ok {
				questions = append(questions, q)
			}
		}
		if len(questions) > 0 {
			out = append(out, QuizMistakes{
				QuizID:    qd.ID,
				Title:     qd.Title,
				Questions: questions,
			})
		}
	}
	return out
}

// FlaggedQuestion is one globally flagged question with its home quiz.
type FlaggedQuestion struct {
	QuizID    string        `json:"quiz_id"`
	QuizTitle string        `json:"quiz_title"`
	Question  quiz.Question `json:"question"`
}

// Flagged filters every cached quiz's questions down to those whose id
// is in the global flag set. Output order is deterministic.
func Flagged(cache map[string]quiz.QuizData, globalFlags map[string]struct{}) []FlaggedQuestion {
	quizIDs := make([]string, 0, len(cache))
	for id := range cache {
		quizIDs = append(quizIDs, id)
	}
	sort.Strings(quizIDs)

	var out []FlaggedQuestion
	for _, quizID := range quizIDs {
		qd := cache[quizID]
		for _, q := range qd.Questions {
			if _, ok := globalFlags[q.ID]; ok {
				out = append(out, FlaggedQuestion{
					QuizID:    qd.ID,
					QuizTitle: qd.Title,
					Question:  q,
				})
			}
		}
	}
	return out
}
