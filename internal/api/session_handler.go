package api

import (
	"net/http"

	"github.com/quizforge/backend/internal/domain/attempt"
)

// ── Request / Response types ────────────────────────────────────────────────

type SelectOptionRequest struct {
	Option string `json:"option"`
}

type NavigateRequest struct {
	Direction string `json:"direction"` // next | previous | jump
	Index     int    `json:"index,omitempty"`
}

type ToggleFlagResponse struct {
	Flagged bool `json:"flagged"`
}

type SubmitRequest struct {
	// Confirm acknowledges an early submit; required unless the cursor
	// sits on the last question.
	Confirm bool `json:"confirm"`
}

type AttemptResult struct {
	AttemptID       string               `json:"attempt_id"`
	QuizID          string               `json:"quiz_id"`
	Score           int                  `json:"score"`
	TotalQuestions  int                  `json:"total_questions"`
	AccuracyPercent int                  `json:"accuracy_percent"`
	TimeSpent       int                  `json:"time_spent_seconds"`
	FlaggedIDs      []string             `json:"flagged_question_ids"`
	Answers         []attempt.UserAnswer `json:"answers"`
}

func attemptResult(a attempt.Attempt) AttemptResult {
	return AttemptResult{
		AttemptID:       a.ID,
		QuizID:          a.QuizID,
		Score:           a.Score,
		TotalQuestions:  a.TotalQuestions,
		AccuracyPercent: attempt.AccuracyPercent(a.Score, a.TotalQuestions),
		TimeSpent:       a.TimeSpentSeconds,
		FlaggedIDs:      a.FlaggedQuestionIDs,
		Answers:         a.Answers,
	}
}

// ── Handlers ────────────────────────────────────────────────────────────────

// GET /session
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// POST /session/answer
func (h *Handler) selectOption(w http.ResponseWriter, r *http.Request) {
	var req SelectOptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.quizzes.SelectOption(req.Option); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// POST /session/navigate
func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.quizzes.Navigate(req.Direction, req.Index); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// POST /session/flag
func (h *Handler) toggleFlag(w http.ResponseWriter, r *http.Request) {
	flagged, err := h.quizzes.ToggleFlag(r.Context())
	if h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, ToggleFlagResponse{Flagged: flagged})
}

// POST /session/pause
func (h *Handler) pauseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.quizzes.Pause(); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// POST /session/resume
func (h *Handler) resumeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.quizzes.Resume(); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// POST /session/submit
func (h *Handler) submitSession(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.quizzes.Submit(r.Context(), req.Confirm)
	if h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, attemptResult(a))
}

// POST /session/reset
func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	h.quizzes.Reset()
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}
