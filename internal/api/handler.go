package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quizforge/backend/internal/domain/session"
	"github.com/quizforge/backend/internal/extract"
	"github.com/quizforge/backend/internal/service"
	"github.com/quizforge/backend/internal/store"
)

// Handler holds all dependencies needed by HTTP handlers.
// Instead of relying on package-level globals, every handler method
// receives its dependencies through this struct.
type Handler struct {
	quizzes *service.QuizService
	logger  *slog.Logger
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(quizzes *service.QuizService, logger *slog.Logger) *Handler {
	return &Handler{
		quizzes: quizzes,
		logger:  logger,
	}
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v. On failure it writes a 400
// and returns false; the caller should return immediately.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// respondError maps service and domain errors onto HTTP statuses.
// Returns true if an error was handled (caller should return).
func (h *Handler) respondError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	var confirmErr *service.ConfirmRequiredError
	if errors.As(err, &confirmErr) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"confirm_required": true,
			"answered":         confirmErr.Answered,
			"total":            confirmErr.Total,
		})
		return true
	}

	var extractErr *extract.ExtractError
	switch {
	case errors.Is(err, extract.ErrEmptyInput):
		http.Error(w, "input is empty", http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, service.ErrExtractionInProgress),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrPaused):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrUnknownOption):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &extractErr):
		http.Error(w, extractErr.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	return true
}
