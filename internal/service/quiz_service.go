package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/quizforge/backend/internal/aggregate"
	"github.com/quizforge/backend/internal/domain/attempt"
	"github.com/quizforge/backend/internal/domain/quiz"
	"github.com/quizforge/backend/internal/domain/session"
	"github.com/quizforge/backend/internal/extract"
	"github.com/quizforge/backend/internal/store"
)

// ErrExtractionInProgress rejects a second extraction trigger while one
// is still outstanding.
var ErrExtractionInProgress = errors.New("an extraction is already in progress")

// ConfirmRequiredError is returned by Submit when the user is not on the
// last question and has not confirmed an early submission. It names how
// many of the total questions are answered so the caller can ask.
type ConfirmRequiredError struct {
	Answered int
	Total    int
}

func (e *ConfirmRequiredError) Error() string {
	return fmt.Sprintf("confirm early submit: %d of %d questions answered", e.Answered, e.Total)
}

// Practice sources.
const (
	PracticeMistakes = "mistakes"
	PracticeFlagged  = "flagged"
)

// flaggedPracticeID keys history for cross-quiz flagged practice runs.
// It never appears in the cache, so aggregation views skip it.
const flaggedPracticeID = "practice-flagged"

// QuizService drives the single session machine and keeps the store's
// cache, history, and global flag set consistent with it.
type QuizService struct {
	store     *store.Store
	extractor extract.Extractor
	machine   *session.Machine
	logger    *slog.Logger

	mu         sync.Mutex
	extracting bool
}

func New(s *store.Store, e extract.Extractor, m *session.Machine, logger *slog.Logger) *QuizService {
	return &QuizService{
		store:     s,
		extractor: e,
		machine:   m,
		logger:    logger,
	}
}

// ── Extraction ──────────────────────────────────────────────────────────────

// ExtractQuiz runs one extraction end to end: gate, await the
// collaborator, resolve against the cache by signature, and land the
// machine on ready or history. Blank input is rejected before any call
// is made, leaving the machine untouched.
func (s *QuizService) ExtractQuiz(ctx context.Context, in extract.Input) (quiz.QuizData, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Data) == 0 {
		return quiz.QuizData{}, extract.ErrEmptyInput
	}

	s.mu.Lock()
	if s.extracting {
		s.mu.Unlock()
		return quiz.QuizData{}, ErrExtractionInProgress
	}
	s.extracting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.extracting = false
		s.mu.Unlock()
	}()

	if err := s.machine.BeginExtraction(); err != nil {
		return quiz.QuizData{}, err
	}

	qd, err := s.extractor.Extract(ctx, in)
	if err != nil {
		s.logger.Error("extraction failed", "error", err)
		if ferr := s.machine.ExtractionFailed(); ferr != nil {
			s.logger.Error("failed to reset after extraction error", "error", ferr)
		}
		return quiz.QuizData{}, err
	}

	// Identical content maps to the same signature: reuse the cached
	// entry rather than duplicating it.
	if cached, cerr := s.store.GetQuiz(ctx, qd.ID); cerr == nil {
		qd = cached
	} else if serr := s.store.SaveQuiz(ctx, qd); serr != nil {
		// Best-effort cache: a lossy write is not an extraction failure.
		s.logger.Error("failed to cache quiz", "quiz_id", qd.ID, "error", serr)
	}

	attempts, aerr := s.store.Attempts(ctx, qd.ID)
	if aerr != nil {
		s.logger.Error("failed to load history", "quiz_id", qd.ID, "error", aerr)
	}

	if err := s.machine.ExtractionSucceeded(qd.ID, qd.Title, len(attempts) > 0); err != nil {
		return quiz.QuizData{}, err
	}

	s.logger.Info("quiz extracted",
		"quiz_id", qd.ID,
		"questions", len(qd.Questions),
		"has_history", len(attempts) > 0,
	)
	return qd, nil
}

// ── Session lifecycle ───────────────────────────────────────────────────────

// StartQuiz begins a fresh attempt on a cached quiz.
func (s *QuizService) StartQuiz(ctx context.Context, quizID string) error {
	qd, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	return s.machine.Start(qd)
}

// StartPractice begins an attempt on an aggregation-derived subset,
// reusing the same shuffle-and-play pipeline as a full quiz.
// source is "mistakes" (requires quizID) or "flagged" (optional quizID
// narrows to one quiz).
func (s *QuizService) StartPractice(ctx context.Context, source, quizID string) error {
	switch source {
	case PracticeMistakes:
		return s.startMistakePractice(ctx, quizID)
	case PracticeFlagged:
		return s.startFlaggedPractice(ctx, quizID)
	default:
		return fmt.Errorf("unknown practice source %q", source)
	}
}

func (s *QuizService) startMistakePractice(ctx context.Context, quizID string) error {
	if quizID == "" {
		return fmt.Errorf("mistake practice requires a quiz id")
	}
	banks, err := s.mistakeBank(ctx)
	if err != nil {
		return err
	}
	for _, bank := range banks {
		if bank.QuizID == quizID {
			return s.machine.Start(quiz.QuizData{
				ID:        bank.QuizID,
				Title:     bank.Title,
				Questions: bank.Questions,
			})
		}
	}
	return store.ErrNotFound
}

func (s *QuizService) startFlaggedPractice(ctx context.Context, quizID string) error {
	flagged, err := s.flaggedQuestions(ctx)
	if err != nil {
		return err
	}

	var questions []quiz.Question
	for _, f := range flagged {
		if quizID != "" && f.QuizID != quizID {
			continue
		}
		questions = append(questions, f.Question)
	}
	if len(questions) == 0 {
		return store.ErrNotFound
	}

	practiceID := flaggedPracticeID
	title := "Flagged Questions"
	if quizID != "" {
		practiceID = quizID
	}
	return s.machine.Start(quiz.QuizData{
		ID:        practiceID,
		Title:     title,
		Questions: questions,
	})
}

// SelectOption answers the current question.
func (s *QuizService) SelectOption(option string) error {
	return s.machine.SelectOption(option)
}

// Navigate moves the cursor: "next", "previous", or "jump" with an index.
func (s *QuizService) Navigate(direction string, index int) error {
	switch direction {
	case "next":
		return s.machine.Next()
	case "previous":
		return s.machine.Previous()
	case "jump":
		return s.machine.JumpTo(index)
	default:
		return fmt.Errorf("unknown navigation direction %q", direction)
	}
}

// ToggleFlag flips the current question's flag in both the session set
// and the persisted global set, keeping the two in sync.
func (s *QuizService) ToggleFlag(ctx context.Context) (flagged bool, err error) {
	questionID, flagged, err := s.machine.ToggleFlag()
	if err != nil {
		return false, err
	}

	flags, err := s.store.Flags(ctx)
	if err != nil {
		return flagged, err
	}
	if flagged {
		flags[questionID] = struct{}{}
	} else {
		delete(flags, questionID)
	}
	if err := s.store.SaveFlags(ctx, flags); err != nil {
		// Best-effort persistence; the session flag already toggled.
		s.logger.Error("failed to persist global flags", "error", err)
	}
	return flagged, nil
}

// Pause freezes the timer and blocks answering.
func (s *QuizService) Pause() error {
	return s.machine.Pause()
}

// Resume restarts the timer.
func (s *QuizService) Resume() error {
	return s.machine.Resume()
}

// Submit ends the attempt. Early submission (not on the last question)
// requires explicit confirmation; the returned ConfirmRequiredError
// names how many of the total questions are answered. The graded attempt
// is appended to history — the one and only history mutation.
func (s *QuizService) Submit(ctx context.Context, confirm bool) (attempt.Attempt, error) {
	if !s.machine.OnLastQuestion() && !confirm {
		if s.machine.State() != session.StatePlaying {
			return attempt.Attempt{}, fmt.Errorf("%w: submit in %s", session.ErrInvalidTransition, s.machine.State())
		}
		return attempt.Attempt{}, &ConfirmRequiredError{
			Answered: s.machine.AnsweredCount(),
			Total:    s.machine.TotalQuestions(),
		}
	}

	result, err := s.machine.Submit()
	if err != nil {
		return attempt.Attempt{}, err
	}

	a := attempt.New(result.QuizID, result.Questions, result.Selected, result.FlaggedIDs, result.ElapsedSeconds)
	if err := s.store.AppendAttempt(ctx, a); err != nil {
		s.logger.Error("failed to persist attempt", "quiz_id", a.QuizID, "error", err)
	}

	s.logger.Info("attempt submitted",
		"quiz_id", a.QuizID,
		"score", a.Score,
		"total", a.TotalQuestions,
		"accuracy", attempt.AccuracyPercent(a.Score, a.TotalQuestions),
	)
	return a, nil
}

// Reset returns to the hub, destroying all per-session state.
func (s *QuizService) Reset() {
	s.machine.Reset()
}

// OpenHistory moves to the past-attempts browser for a quiz.
func (s *QuizService) OpenHistory(quizID string) error {
	return s.machine.OpenHistory(quizID)
}

// OpenReview moves to read-only inspection of one archived attempt.
func (s *QuizService) OpenReview(attemptID string) error {
	return s.machine.OpenReview(attemptID)
}

// BackToHistory leaves review mode.
func (s *QuizService) BackToHistory() error {
	return s.machine.BackToHistory()
}

// Snapshot exposes the machine's read model.
func (s *QuizService) Snapshot() session.Snapshot {
	return s.machine.Snapshot()
}

// ── Library, history, and aggregation reads ─────────────────────────────────

// ListQuizzes returns the parsed-quiz cache.
func (s *QuizService) ListQuizzes(ctx context.Context) (map[string]quiz.QuizData, error) {
	return s.store.ListQuizzes(ctx)
}

// GetQuiz returns one cached quiz.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (quiz.QuizData, error) {
	return s.store.GetQuiz(ctx, quizID)
}

// Attempts returns a quiz's history, oldest first.
func (s *QuizService) Attempts(ctx context.Context, quizID string) ([]attempt.Attempt, error) {
	return s.store.Attempts(ctx, quizID)
}

// GetAttempt returns one archived attempt of a quiz.
func (s *QuizService) GetAttempt(ctx context.Context, quizID, attemptID string) (attempt.Attempt, error) {
	attempts, err := s.store.Attempts(ctx, quizID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	for _, a := range attempts {
		if a.ID == attemptID {
			return a, nil
		}
	}
	return attempt.Attempt{}, store.ErrNotFound
}

// MistakeBank recomputes the previously-missed view across all quizzes.
func (s *QuizService) MistakeBank(ctx context.Context) ([]aggregate.QuizMistakes, error) {
	return s.mistakeBank(ctx)
}

func (s *QuizService) mistakeBank(ctx context.Context) ([]aggregate.QuizMistakes, error) {
	history, err := s.store.AllAttempts(ctx)
	if err != nil {
		return nil, err
	}
	cache, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.MistakeBank(history, cache), nil
}

// FlaggedQuestions recomputes the globally flagged view across all quizzes.
func (s *QuizService) FlaggedQuestions(ctx context.Context) ([]aggregate.FlaggedQuestion, error) {
	return s.flaggedQuestions(ctx)
}

func (s *QuizService) flaggedQuestions(ctx context.Context) ([]aggregate.FlaggedQuestion, error) {
	cache, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	flags, err := s.store.Flags(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.Flagged(cache, flags), nil
}

// ── Theme preference ────────────────────────────────────────────────────────

func (s *QuizService) Theme(ctx context.Context) (string, error) {
	theme, err := s.store.Theme(ctx)
	if err != nil {
		return "", err
	}
	if theme == "" {
		theme = "light"
	}
	return theme, nil
}

func (s *QuizService) SetTheme(ctx context.Context, theme string) error {
	return s.store.SetTheme(ctx, theme)
}
