package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quizforge/backend/internal/domain/attempt"
	"github.com/quizforge/backend/internal/domain/quiz"
	"github.com/quizforge/backend/internal/domain/session"
	"github.com/quizforge/backend/internal/extract"
	"github.com/quizforge/backend/internal/service"
	"github.com/quizforge/backend/internal/store"
)

// fakeExtractor returns a canned quiz, or blocks until released when
// blockCh is set. Errors win over the canned result.
type fakeExtractor struct {
	result  quiz.QuizData
	err     error
	blockCh chan struct{}
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, in extract.Input) (quiz.QuizData, error) {
	f.calls++
	if f.blockCh != nil {
		select {
		case <-f.blockCh:
		case <-ctx.Done():
			return quiz.QuizData{}, ctx.Err()
		}
	}
	if f.err != nil {
		return quiz.QuizData{}, f.err
	}
	return f.result, nil
}

func cannedQuiz() quiz.QuizData {
	qd := quiz.QuizData{
		ID:    "quiz-777",
		Title: "Canned",
		Questions: []quiz.Question{
			{Text: "first", Options: []string{"right", "wrong"}, CorrectAnswer: "right"},
			{Text: "second", Options: []string{"right", "wrong"}, CorrectAnswer: "right"},
		},
	}
	quiz.AssignIDs(qd.ID, qd.Questions)
	return qd
}

func newService(t *testing.T, e extract.Extractor) (*service.QuizService, *store.Store) {
	t.Helper()
	st := store.New(store.NewMemory())
	m := session.NewWithInterval(time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(st, e, m, logger)
	t.Cleanup(svc.Reset)
	return svc, st
}

func TestExtractQuiz_FreshQuizLandsOnReady(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{result: cannedQuiz()})

	qd, err := svc.ExtractQuiz(ctx, extract.Input{Text: "material"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qd.ID != "quiz-777" {
		t.Errorf("expected quiz-777, got %q", qd.ID)
	}
	if got := svc.Snapshot().State; got != session.StateReady {
		t.Errorf("expected ready, got %s", got)
	}

	// The quiz was cached for later starts.
	if _, err := st.GetQuiz(ctx, "quiz-777"); err != nil {
		t.Errorf("expected quiz cached, got %v", err)
	}
}

func TestExtractQuiz_WithHistoryLandsOnHistory(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{result: cannedQuiz()})

	// Prior attempt on the same quiz.
	st.SaveQuiz(ctx, cannedQuiz())
	startAndSubmit(t, svc, "quiz-777")
	svc.Reset()

	if _, err := svc.ExtractQuiz(ctx, extract.Input{Text: "material"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.Snapshot().State; got != session.StateHistory {
		t.Errorf("expected history for re-imported quiz, got %s", got)
	}
}

func TestExtractQuiz_CacheHitReusesStoredEntry(t *testing.T) {
	ctx := context.Background()

	// The cached copy differs from what the extractor returns this time;
	// the signature match means the cached copy wins.
	stored := cannedQuiz()
	stored.Title = "Stored Title"

	svc, st := newService(t, &fakeExtractor{result: cannedQuiz()})
	st.SaveQuiz(ctx, stored)

	qd, err := svc.ExtractQuiz(ctx, extract.Input{Text: "material"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qd.Title != "Stored Title" {
		t.Errorf("expected cached entry reused, got title %q", qd.Title)
	}
}

func TestExtractQuiz_EmptyInputRejectedBeforeTransition(t *testing.T) {
	ctx := context.Background()
	fake := &fakeExtractor{result: cannedQuiz()}
	svc, _ := newService(t, fake)

	_, err := svc.ExtractQuiz(ctx, extract.Input{Text: "   "})
	if !errors.Is(err, extract.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if fake.calls != 0 {
		t.Errorf("expected no extractor call, got %d", fake.calls)
	}
	if got := svc.Snapshot().State; got != session.StateIdle {
		t.Errorf("expected machine untouched (idle), got %s", got)
	}
}

func TestExtractQuiz_FailureReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeExtractor{err: &extract.ExtractError{Reason: "model down"}})

	_, err := svc.ExtractQuiz(ctx, extract.Input{Text: "material"})
	var exErr *extract.ExtractError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if got := svc.Snapshot().State; got != session.StateIdle {
		t.Errorf("expected idle after failure, got %s", got)
	}

	// The gate is released: the retry reaches the extractor again instead
	// of being rejected as already in progress.
	_, err = svc.ExtractQuiz(ctx, extract.Input{Text: "material"})
	if errors.Is(err, service.ErrExtractionInProgress) {
		t.Error("expected gate released after failure")
	}
}

func TestExtractQuiz_SecondTriggerRejectedWhileOutstanding(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	fake := &fakeExtractor{result: cannedQuiz(), blockCh: block}
	svc, _ := newService(t, fake)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ExtractQuiz(ctx, extract.Input{Text: "material"})
		done <- err
	}()

	// Wait until the first extraction holds the gate.
	deadline := time.Now().Add(2 * time.Second)
	for svc.Snapshot().State != session.StateExtracting && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, err := svc.ExtractQuiz(ctx, extract.Input{Text: "other material"})
	if !errors.Is(err, service.ErrExtractionInProgress) {
		t.Errorf("expected ErrExtractionInProgress, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first extraction failed: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected exactly one extractor call, got %d", fake.calls)
	}
}

func TestStartQuiz_UnknownQuiz(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{})

	err := svc.StartQuiz(context.Background(), "quiz-missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmit_EarlyNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{})
	st.SaveQuiz(ctx, cannedQuiz())

	if err := svc.StartQuiz(ctx, "quiz-777"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := svc.SelectOption("right"); err != nil {
		t.Fatalf("failed to select: %v", err)
	}

	// Cursor is on question 1 of 2: early submit without confirm.
	_, err := svc.Submit(ctx, false)
	var confirmErr *service.ConfirmRequiredError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("expected ConfirmRequiredError, got %v", err)
	}
	if confirmErr.Answered != 1 || confirmErr.Total != 2 {
		t.Errorf("expected 1 of 2 answered, got %d of %d", confirmErr.Answered, confirmErr.Total)
	}

	// Nothing was persisted by the refused submit.
	attempts, _ := st.Attempts(ctx, "quiz-777")
	if len(attempts) != 0 {
		t.Fatalf("refused submit persisted an attempt")
	}

	// Confirmed early submit goes through.
	a, err := svc.Submit(ctx, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Score != 1 || a.TotalQuestions != 2 {
		t.Errorf("expected score 1/2, got %d/%d", a.Score, a.TotalQuestions)
	}
}

func TestSubmit_OnLastQuestionNeedsNoConfirmation(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{})
	st.SaveQuiz(ctx, cannedQuiz())

	if err := svc.StartQuiz(ctx, "quiz-777"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	svc.Navigate("next", 0)

	if _, err := svc.Submit(ctx, false); err != nil {
		t.Errorf("expected submit from last question to pass, got %v", err)
	}
}

func TestSubmit_AppendsExactlyOneAttemptEach(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{})
	st.SaveQuiz(ctx, cannedQuiz())

	first := startAndSubmit(t, svc, "quiz-777")
	second := startAndSubmit(t, svc, "quiz-777")

	if first.ID == second.ID {
		t.Error("expected distinct attempt ids")
	}

	attempts, err := st.Attempts(ctx, "quiz-777")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts in history, got %d", len(attempts))
	}
	if attempts[0].ID != first.ID || attempts[1].ID != second.ID {
		t.Errorf("history out of chronological order")
	}
}

func TestToggleFlag_SyncsGlobalSet(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{})
	st.SaveQuiz(ctx, cannedQuiz())

	if err := svc.StartQuiz(ctx, "quiz-777"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	flagged, err := svc.ToggleFlag(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flagged {
		t.Error("expected first toggle to flag")
	}
	flags, _ := st.Flags(ctx)
	if len(flags) != 1 {
		t.Fatalf("expected 1 global flag, got %d", len(flags))
	}

	flagged, err = svc.ToggleFlag(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flagged {
		t.Error("expected second toggle to unflag")
	}
	flags, _ = st.Flags(ctx)
	if len(flags) != 0 {
		t.Errorf("expected global flags back to empty, got %v", flags)
	}
}

func TestStartPractice_Mistakes(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{})
	st.SaveQuiz(ctx, cannedQuiz())

	// Make a mistake on the current question, then finish.
	if err := svc.StartQuiz(ctx, "quiz-777"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := svc.SelectOption("wrong"); err != nil {
		t.Fatalf("failed to select: %v", err)
	}
	if _, err := svc.Submit(ctx, true); err != nil {
		t.Fatalf("failed to submit: %v", err)
	}

	if err := svc.StartPractice(ctx, service.PracticeMistakes, "quiz-777"); err != nil {
		t.Fatalf("failed to start practice: %v", err)
	}

	snap := svc.Snapshot()
	if snap.State != session.StatePlaying {
		t.Fatalf("expected playing, got %s", snap.State)
	}
	if snap.TotalQuestions != 1 {
		t.Errorf("expected practice over the 1 missed question, got %d", snap.TotalQuestions)
	}
}

func TestStartPractice_MistakesRequiresQuizID(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{})

	if err := svc.StartPractice(context.Background(), service.PracticeMistakes, ""); err == nil {
		t.Error("expected error for missing quiz id")
	}
}

func TestStartPractice_Flagged(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{})
	st.SaveQuiz(ctx, cannedQuiz())

	st.SaveFlags(ctx, map[string]struct{}{"quiz-777-q-1": {}})

	if err := svc.StartPractice(ctx, service.PracticeFlagged, ""); err != nil {
		t.Fatalf("failed to start flagged practice: %v", err)
	}

	snap := svc.Snapshot()
	if snap.TotalQuestions != 1 {
		t.Errorf("expected 1 flagged question, got %d", snap.TotalQuestions)
	}
	if snap.Question == nil || snap.Question.ID != "quiz-777-q-1" {
		t.Errorf("unexpected practice question: %+v", snap.Question)
	}
}

func TestStartPractice_FlaggedEmptySet(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{})

	err := svc.StartPractice(context.Background(), service.PracticeFlagged, "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty flag set, got %v", err)
	}
}

func TestGetAttempt(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, &fakeExtractor{})
	st.SaveQuiz(ctx, cannedQuiz())

	a := startAndSubmit(t, svc, "quiz-777")

	got, err := svc.GetAttempt(ctx, "quiz-777", a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("expected attempt %q, got %q", a.ID, got.ID)
	}

	if _, err := svc.GetAttempt(ctx, "quiz-777", "no-such-attempt"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTheme_DefaultsToLight(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeExtractor{})

	theme, err := svc.Theme(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if theme != "light" {
		t.Errorf("expected light default, got %q", theme)
	}

	if err := svc.SetTheme(ctx, "dark"); err != nil {
		t.Fatalf("failed to set theme: %v", err)
	}
	theme, _ = svc.Theme(ctx)
	if theme != "dark" {
		t.Errorf("expected dark, got %q", theme)
	}
}

// startAndSubmit plays a full attempt answering everything correctly.
func startAndSubmit(t *testing.T, svc *service.QuizService, quizID string) attempt.Attempt {
	t.Helper()
	ctx := context.Background()
	if err := svc.StartQuiz(ctx, quizID); err != nil {
		t.Fatalf("failed to start quiz: %v", err)
	}
	total := svc.Snapshot().TotalQuestions
	for i := 0; i < total; i++ {
		if err := svc.SelectOption("right"); err != nil {
			t.Fatalf("failed to select: %v", err)
		}
		if i < total-1 {
			if err := svc.Navigate("next", 0); err != nil {
				t.Fatalf("failed to navigate: %v", err)
			}
		}
	}
	a, err := svc.Submit(ctx, false)
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	return a
}
