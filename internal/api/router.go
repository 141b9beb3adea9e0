package api

import "net/http"

// RegisterRoutes wires every endpoint onto the mux using Go 1.22 method
// patterns.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Extraction
	mux.HandleFunc("POST /extract", h.extractQuiz)

	// Quiz library
	mux.HandleFunc("GET /quizzes", h.listQuizzes)
	mux.HandleFunc("GET /quizzes/{quizID}", h.getQuiz)
	mux.HandleFunc("POST /quizzes/{quizID}/start", h.startQuiz)

	// Active session
	mux.HandleFunc("GET /session", h.getSession)
	mux.HandleFunc("POST /session/answer", h.selectOption)
	mux.HandleFunc("POST /session/navigate", h.navigate)
	mux.HandleFunc("POST /session/flag", h.toggleFlag)
	mux.HandleFunc("POST /session/pause", h.pauseSession)
	mux.HandleFunc("POST /session/resume", h.resumeSession)
	mux.HandleFunc("POST /session/submit", h.submitSession)
	mux.HandleFunc("POST /session/reset", h.resetSession)

	// History and review
	mux.HandleFunc("GET /quizzes/{quizID}/attempts", h.listAttempts)
	mux.HandleFunc("GET /quizzes/{quizID}/attempts/{attemptID}", h.reviewAttempt)
	mux.HandleFunc("POST /quizzes/{quizID}/history", h.openHistory)
	mux.HandleFunc("POST /session/review/{attemptID}", h.openReview)
	mux.HandleFunc("POST /session/review/back", h.backToHistory)

	// Aggregation views and practice
	mux.HandleFunc("GET /mistakes", h.mistakeBank)
	mux.HandleFunc("GET /flagged", h.flaggedQuestions)
	mux.HandleFunc("POST /practice", h.startPractice)

	// Preferences
	mux.HandleFunc("GET /theme", h.getTheme)
	mux.HandleFunc("PUT /theme", h.setTheme)
}
