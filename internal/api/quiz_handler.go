package api

import (
	"encoding/base64"
	"net/http"
	"sort"

	"github.com/quizforge/backend/internal/domain/quiz"
	"github.com/quizforge/backend/internal/extract"
)

// ── Request / Response types ────────────────────────────────────────────────

type ExtractRequest struct {
	Text     string `json:"text,omitempty"`
	FileName string `json:"file_name,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	// FileData carries uploaded file bytes, base64-encoded.
	FileData string `json:"file_data,omitempty"`
}

type QuizSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"question_count"`
}

type ExtractResponse struct {
	Quiz  QuizSummary `json:"quiz"`
	State string      `json:"state"`
}

type ThemeResponse struct {
	Theme string `json:"theme"`
}

type SetThemeRequest struct {
	Theme string `json:"theme"`
}

// ── Handlers ────────────────────────────────────────────────────────────────

// POST /extract
func (h *Handler) extractQuiz(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := extract.Input{
		Text:     req.Text,
		FileName: req.FileName,
		MIMEType: req.MIMEType,
	}
	if req.FileData != "" {
		data, err := base64.StdEncoding.DecodeString(req.FileData)
		if err != nil {
			http.Error(w, "file_data is not valid base64", http.StatusBadRequest)
			return
		}
		in.Data = data
	}

	qd, err := h.quizzes.ExtractQuiz(r.Context(), in)
	if h.respondError(w, err) {
		return
	}

	respondJSON(w, http.StatusOK, ExtractResponse{
		Quiz: QuizSummary{
			ID:            qd.ID,
			Title:         qd.Title,
			QuestionCount: len(qd.Questions),
		},
		State: string(h.quizzes.Snapshot().State),
	})
}

// GET /quizzes
func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	cache, err := h.quizzes.ListQuizzes(r.Context())
	if h.respondError(w, err) {
		return
	}

	summaries := make([]QuizSummary, 0, len(cache))
	for _, qd := range cache {
		summaries = append(summaries, QuizSummary{
			ID:            qd.ID,
			Title:         qd.Title,
			QuestionCount: len(qd.Questions),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })

	respondJSON(w, http.StatusOK, summaries)
}

// GET /quizzes/{quizID}
func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizID")

	qd, err := h.quizzes.GetQuiz(r.Context(), quizID)
	if h.respondError(w, err) {
		return
	}

	respondJSON(w, http.StatusOK, quizView(qd))
}

// quizView strips correct answers from a cached quiz so the library
// listing cannot be used to peek ahead.
type QuizView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Questions []QuestionView `json:"questions"`
}

type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

func quizView(qd quiz.QuizData) QuizView {
	questions := make([]QuestionView, len(qd.Questions))
	for i, q := range qd.Questions {
		questions[i] = QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
	}
	return QuizView{ID: qd.ID, Title: qd.Title, Questions: questions}
}

// POST /quizzes/{quizID}/start
func (h *Handler) startQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizID")

	if err := h.quizzes.StartQuiz(r.Context(), quizID); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, h.quizzes.Snapshot())
}

// GET /theme
func (h *Handler) getTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.quizzes.Theme(r.Context())
	if h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, ThemeResponse{Theme: theme})
}

// PUT /theme
func (h *Handler) setTheme(w http.ResponseWriter, r *http.Request) {
	var req SetThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Theme == "" {
		http.Error(w, "theme is required", http.StatusBadRequest)
		return
	}

	if err := h.quizzes.SetTheme(r.Context(), req.Theme); h.respondError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, ThemeResponse{Theme: req.Theme})
}
