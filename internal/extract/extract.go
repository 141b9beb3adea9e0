package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/quizforge/backend/internal/domain/quiz"
)

// Input is raw material for extraction: either pasted text or an uploaded
// file's bytes with their MIME type.
type Input struct {
	Text     string
	FileName string
	MIMEType string
	Data     []byte
}

// ErrEmptyInput rejects extraction of blank input before any call is made.
var ErrEmptyInput = errors.New("nothing to extract from")

// ExtractError is returned when the collaborator could not produce
// well-formed quiz data, so the caller can distinguish a bad response
// from an unreachable endpoint.
type ExtractError struct {
	Reason  string
	Wrapped error
}

func (e *ExtractError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractError) Unwrap() error {
	return e.Wrapped
}

// Extractor turns raw input into structured quiz data.
// Implementations may call an LLM, parse locally, or return canned
// results (for tests). Any schema violation must surface as a
// recoverable error, never a panic.
type Extractor interface {
	Extract(ctx context.Context, in Input) (quiz.QuizData, error)
}
