package api

import (
	"net/http"

	"github.com/quizforge/backend/internal/domain/attempt"
)

// ── Request / Response types ────────────────────────────────────────────────

type AttemptSummary struct {
	AttemptID       string `json:"attempt_id"`
	Timestamp       string `json:"timestamp"`
	Score           int    `json:"score"`
	TotalQuestions  int    `json:"total_questions"`
	AccuracyPercent int    `json:"accuracy_percent"`
	TimeSpent       int    `json:"time_spent_seconds"`
}

type PracticeRequest struct {
	Source string `json:"source"`            // mistakes | flagged
	QuizID string `json:"quiz_id,omitempty"` // required for mistakes
}

// ── Handlers ────────────────────────────────────────────────────────────────

// GET /quizzes/{quizID}/attempts
func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizID")

	attempts, err := h.quizzes.Attempts(r.Context(), quizID)
	if h.respondError(w, err) {
		return
	}

	summaries := make([]AttemptSummary, len(attempts))
	for i, a := range attempts {
		summaries[i] = AttemptSummary{
			AttemptID:       a.ID,
			Timestamp:       a.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Score:           a.Score,
			TotalQuestions:  a.TotalQuestions,
			AccuracyPercent: attempt.AccuracyPercent(a.Score, a.TotalQuestions),
			TimeSpent:       a.TimeSpentSeconds,
		}
	}
	respondJSON(w, http.StatusOK, summaries)
}

// GET /quizzes/{quizID}/attempts/{attemptID}
//
// Review of an archived attempt renders through the same AttemptResult
// shape the live submit response uses; the only difference is which
// answer list it binds to.
func (h *Handler) reviewAttempt(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizID")
	attemptID := r.PathValue("attemptID")

	a, err := h.quizzes.GetAttempt(r.Context(), quizID, attemptID)
	if h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, attemptResult(a))
}

// POST /quizzes/{quizID}/history
func (h *Handler) openHistory(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizID")

	if _, err := h.quizzes.GetQuiz(r.Context(), quizID); h.respondError(w, err) {
		return
	}
	if err := h.quizzes.OpenHistory(quizID); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// POST /session/review/{attemptID}
func (h *Handler) openReview(w http.ResponseWriter, r *http.Request) {
	attemptID := r.PathValue("attemptID")

	if err := h.quizzes.OpenReview(attemptID); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// POST /session/review/back
func (h *Handler) backToHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.quizzes.BackToHistory(); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// GET /mistakes
func (h *Handler) mistakeBank(w http.ResponseWriter, r *http.Request) {
	banks, err := h.quizzes.MistakeBank(r.Context())
	if h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, banks)
}

// GET /flagged
func (h *Handler) flaggedQuestions(w http.ResponseWriter, r *http.Request) {
	flagged, err := h.quizzes.FlaggedQuestions(r.Context())
	if h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, flagged)
}

// POST /practice
func (h *Handler) startPractice(w http.ResponseWriter, r *http.Request) {
	var req PracticeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.quizzes.StartPractice(r.Context(), req.Source, req.QuizID); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}
