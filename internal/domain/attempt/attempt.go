package attempt

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/quizforge/backend/internal/domain/quiz"
)

// NotAnswered is the sentinel recorded for questions the user never
// attempted. No real option ever carries this value, so sentinel rows
// always grade incorrect.
const NotAnswered = "Not Answered"

// UserAnswer is the graded outcome for one question. Derived, never
// hand-edited.
type UserAnswer struct {
	QuestionID     string `json:"question_id"`
	SelectedOption string `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
}

// Attempt is one completed run through a quiz. Immutable once created:
// it is appended to history and never edited or deleted.
type Attempt struct {
	ID                 string       `json:"id"`
	QuizID             string       `json:"quiz_id"`
	Timestamp          time.Time    `json:"timestamp"`
	Score              int          `json:"score"`
	TotalQuestions     int          `json:"total_questions"`
	TimeSpentSeconds   int          `json:"time_spent_seconds"`
	FlaggedQuestionIDs []string     `json:"flagged_question_ids"`
	Answers            []UserAnswer `json:"answers"`
}

// Grade produces one UserAnswer per question, in question order.
// Comparison is exact string equality: no trimming, no case folding.
func Grade(questions []quiz.Question, selected map[string]string) []UserAnswer {
	answers := make([]UserAnswer, len(questions))
	for i, q := range questions {
		sel, ok := selected[q.ID]
		if !ok {
			sel = NotAnswered
		}
		answers[i] = UserAnswer{
			QuestionID:     q.ID,
			SelectedOption: sel,
			IsCorrect:      sel == q.CorrectAnswer,
		}
	}
	return answers
}

// Score counts correct answers.
func Score(answers []UserAnswer) int {
	score := 0
	for _, a := range answers {
		if a.IsCorrect {
			score++
		}
	}
	return score
}

// AccuracyPercent reports score/total as a rounded percentage.
func AccuracyPercent(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(score) * 100 / float64(total)))
}

// New grades the session's final state and packages it as an Attempt.
func New(quizID string, questions []quiz.Question, selected map[string]string, flaggedIDs []string, elapsedSeconds int) Attempt {
	answers := Grade(questions, selected)
	return Attempt{
		ID:                 uuid.NewString(),
		QuizID:             quizID,
		Timestamp:          time.Now().UTC(),
		Score:              Score(answers),
		TotalQuestions:     len(questions),
		TimeSpentSeconds:   elapsedSeconds,
		FlaggedQuestionIDs: flaggedIDs,
		Answers:            answers,
	}
}
