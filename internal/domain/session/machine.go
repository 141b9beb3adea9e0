package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/quizforge/backend/internal/domain/quiz"
	"github.com/quizforge/backend/internal/shuffle"
)

// State is the lifecycle position of the single active session.
type State string

const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting"
	StateReady      State = "ready"
	StatePlaying    State = "playing"
	StateCompleted  State = "completed"
	StateHistory    State = "history"
	StateReview     State = "review"
)

var (
	// ErrInvalidTransition covers every operation attempted from a state
	// that does not permit it. Under correct drivers these are unreachable;
	// they exist to fail loudly instead of rendering nothing.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrPaused rejects option selection while the timer is frozen.
	ErrPaused = errors.New("session is paused")

	// ErrUnknownOption rejects answers that do not belong to the current
	// question's option list.
	ErrUnknownOption = errors.New("option does not belong to the current question")
)

// Machine owns all per-attempt state: the shuffled working copy of the
// quiz, the cursor, selections, session flags, the timer, and the
// lifecycle state itself. It is safe for concurrent use; the model is
// still single-user, but HTTP entry points and the ticker goroutine
// touch it from different goroutines.
type Machine struct {
	mu sync.Mutex

	state     State
	quizID    string
	quizTitle string
	questions []quiz.Question // shuffled working copy
	current   int
	selected  map[string]string
	flags     map[string]struct{}
	elapsed   int
	paused    bool

	reviewAttemptID string

	tickInterval time.Duration
	stopTick     chan struct{}
	rng          *rand.Rand
}

// New creates an idle machine ticking once per real second.
func New() *Machine {
	return NewWithInterval(time.Second)
}

// NewWithInterval creates an idle machine with a custom tick granularity.
func NewWithInterval(interval time.Duration) *Machine {
	return &Machine{
		state:        StateIdle,
		selected:     make(map[string]string),
		flags:        make(map[string]struct{}),
		tickInterval: interval,
	}
}

// SeedRand pins the shuffle source, used by deterministic tests.
func (m *Machine) SeedRand(seed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rand.New(rand.NewSource(seed))
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ── Extraction lifecycle ────────────────────────────────────────────────────

// BeginExtraction gates the machine into the extracting state. Only one
// extraction may be outstanding; a second trigger is rejected, as is any
// trigger while a quiz is being played.
func (m *Machine) BeginExtraction() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExtracting || m.state == StatePlaying {
		return fmt.Errorf("%w: cannot extract from %s", ErrInvalidTransition, m.state)
	}
	m.state = StateExtracting
	return nil
}

// ExtractionSucceeded lands on ready for a fresh quiz, or directly on the
// history browser when the quiz already has recorded attempts.
func (m *Machine) ExtractionSucceeded(quizID, quizTitle string, hasHistory bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateExtracting {
		return fmt.Errorf("%w: extraction result in %s", ErrInvalidTransition, m.state)
	}
	m.quizID = quizID
	m.quizTitle = quizTitle
	if hasHistory {
		m.state = StateHistory
	} else {
		m.state = StateReady
	}
	return nil
}

// ExtractionFailed returns to idle. The error is surfaced by the caller;
// no retry is attempted here.
func (m *Machine) ExtractionFailed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateExtracting {
		return fmt.Errorf("%w: extraction failure in %s", ErrInvalidTransition, m.state)
	}
	m.state = StateIdle
	return nil
}

// ── Playing ─────────────────────────────────────────────────────────────────

// Start prepares a fresh attempt: question order and each question's
// option order are shuffled independently, the cursor returns to zero,
// all per-session state is cleared, the timer resets and starts ticking.
// Allowed from every state except a live extraction.
func (m *Machine) Start(q quiz.QuizData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExtracting {
		return fmt.Errorf("%w: start while extracting", ErrInvalidTransition)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %s has no questions", ErrInvalidTransition, q.ID)
	}

	m.stopTickerLocked()

	shuffled := shuffle.Shuffle(m.rng, q.Questions)
	for i := range shuffled {
		shuffled[i].Options = shuffle.Shuffle(m.rng, shuffled[i].Options)
	}

	m.quizID = q.ID
	m.quizTitle = q.Title
	m.questions = shuffled
	m.current = 0
	m.selected = make(map[string]string)
	m.flags = make(map[string]struct{})
	m.elapsed = 0
	m.paused = false
	m.reviewAttemptID = ""
	m.state = StatePlaying

	m.startTickerLocked()
	return nil
}

// Next advances the cursor, clamped at the last question.
func (m *Machine) Next() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return fmt.Errorf("%w: navigate in %s", ErrInvalidTransition, m.state)
	}
	if m.current < len(m.questions)-1 {
		m.current++
	}
	return nil
}

// Previous moves the cursor back, clamped at zero.
func (m *Machine) Previous() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return fmt.Errorf("%w: navigate in %s", ErrInvalidTransition, m.state)
	}
	if m.current > 0 {
		m.current--
	}
	return nil
}

// JumpTo moves the cursor to an absolute index.
func (m *Machine) JumpTo(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return fmt.Errorf("%w: navigate in %s", ErrInvalidTransition, m.state)
	}
	if i < 0 || i >= len(m.questions) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidTransition, i, len(m.questions))
	}
	m.current = i
	return nil
}

// SelectOption records the answer for the current question, replacing any
// earlier choice. Rejected while paused.
func (m *Machine) SelectOption(option string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return fmt.Errorf("%w: select in %s", ErrInvalidTransition, m.state)
	}
	if m.paused {
		return ErrPaused
	}
	q := m.questions[m.current]
	if !hasOption(q.Options, option) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}
	m.selected[q.ID] = option
	return nil
}

// ToggleFlag flips the session flag on the current question and reports
// the question id and its new flagged state, so the caller can mirror the
// change into the global flag set.
func (m *Machine) ToggleFlag() (questionID string, flagged bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return "", false, fmt.Errorf("%w: flag in %s", ErrInvalidTransition, m.state)
	}
	id := m.questions[m.current].ID
	if _, ok := m.flags[id]; ok {
		delete(m.flags, id)
		return id, false, nil
	}
	m.flags[id] = struct{}{}
	return id, true, nil
}

// Pause freezes the timer and blocks option selection. Idempotent.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return fmt.Errorf("%w: pause in %s", ErrInvalidTransition, m.state)
	}
	if m.paused {
		return nil
	}
	m.paused = true
	m.stopTickerLocked()
	return nil
}

// Resume restarts the timer from its frozen value. Idempotent.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return fmt.Errorf("%w: resume in %s", ErrInvalidTransition, m.state)
	}
	if !m.paused {
		return nil
	}
	m.paused = false
	m.startTickerLocked()
	return nil
}

// Result is the frozen end-of-attempt state handed to scoring.
type Result struct {
	QuizID         string
	QuizTitle      string
	Questions      []quiz.Question
	Selected       map[string]string
	FlaggedIDs     []string
	ElapsedSeconds int
}

// Submit ends the attempt, stops the timer and returns the final state.
// Unanswered questions are the scorer's concern, not the machine's.
func (m *Machine) Submit() (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return Result{}, fmt.Errorf("%w: submit in %s", ErrInvalidTransition, m.state)
	}

	m.stopTickerLocked()
	m.state = StateCompleted
	m.paused = false

	selected := make(map[string]string, len(m.selected))
	for k, v := range m.selected {
		selected[k] = v
	}
	flagged := make([]string, 0, len(m.flags))
	for id := range m.flags {
		flagged = append(flagged, id)
	}
	sort.Strings(flagged)

	return Result{
		QuizID:         m.quizID,
		QuizTitle:      m.quizTitle,
		Questions:      m.questions,
		Selected:       selected,
		FlaggedIDs:     flagged,
		ElapsedSeconds: m.elapsed,
	}, nil
}

// ── History and review ──────────────────────────────────────────────────────

// OpenHistory switches to the past-attempts browser for a quiz.
func (m *Machine) OpenHistory(quizID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateIdle, StateReady, StateCompleted, StateHistory:
		m.quizID = quizID
		m.state = StateHistory
		return nil
	default:
		return fmt.Errorf("%w: open history in %s", ErrInvalidTransition, m.state)
	}
}

// OpenReview inspects one archived attempt, read-only.
func (m *Machine) OpenReview(attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateHistory {
		return fmt.Errorf("%w: open review in %s", ErrInvalidTransition, m.state)
	}
	m.reviewAttemptID = attemptID
	m.state = StateReview
	return nil
}

// BackToHistory leaves review mode.
func (m *Machine) BackToHistory() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReview {
		return fmt.Errorf("%w: back in %s", ErrInvalidTransition, m.state)
	}
	m.reviewAttemptID = ""
	m.state = StateHistory
	return nil
}

// Reset tears the session down and returns to the hub. Session flags die
// here; global flags are the store's responsibility and survive.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTickerLocked()
	m.state = StateIdle
	m.quizID = ""
	m.quizTitle = ""
	m.questions = nil
	m.current = 0
	m.selected = make(map[string]string)
	m.flags = make(map[string]struct{})
	m.elapsed = 0
	m.paused = false
	m.reviewAttemptID = ""
}

// ── Timer ───────────────────────────────────────────────────────────────────

// Tick advances elapsed time by one unit. A no-op unless the session is
// playing and not paused, so a stray late tick cannot corrupt state.
func (m *Machine) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePlaying && !m.paused {
		m.elapsed++
	}
}

// TimerActive reports whether a ticker goroutine is currently running.
// Invariant: true exactly when playing and not paused.
func (m *Machine) TimerActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopTick != nil
}

func (m *Machine) startTickerLocked() {
	if m.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	m.stopTick = stop

	ticker := time.NewTicker(m.tickInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Tick()
			case <-stop:
				return
			}
		}
	}()
}

func (m *Machine) stopTickerLocked() {
	if m.stopTick == nil {
		return
	}
	close(m.stopTick)
	m.stopTick = nil
}

// ── Read model ──────────────────────────────────────────────────────────────

// QuestionView is what the player is allowed to see mid-attempt: the
// correct answer stays server-side until submission.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Snapshot is a consistent read of the whole machine.
type Snapshot struct {
	State           State         `json:"state"`
	QuizID          string        `json:"quiz_id,omitempty"`
	QuizTitle       string        `json:"quiz_title,omitempty"`
	CurrentIndex    int           `json:"current_index"`
	TotalQuestions  int           `json:"total_questions"`
	Question        *QuestionView `json:"question,omitempty"`
	SelectedOption  string        `json:"selected_option,omitempty"`
	Flagged         bool          `json:"flagged"`
	AnsweredCount   int           `json:"answered_count"`
	ElapsedSeconds  int           `json:"elapsed_seconds"`
	Paused          bool          `json:"paused"`
	ReviewAttemptID string        `json:"review_attempt_id,omitempty"`
}

// Snapshot returns the machine's externally visible state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:           m.state,
		QuizID:          m.quizID,
		QuizTitle:       m.quizTitle,
		CurrentIndex:    m.current,
		TotalQuestions:  len(m.questions),
		AnsweredCount:   len(m.selected),
		ElapsedSeconds:  m.elapsed,
		Paused:          m.paused,
		ReviewAttemptID: m.reviewAttemptID,
	}

	if m.state == StatePlaying && m.current < len(m.questions) {
		q := m.questions[m.current]
		snap.Question = &QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
		snap.SelectedOption = m.selected[q.ID]
		_, snap.Flagged = m.flags[q.ID]
	}

	return snap
}

// AnsweredCount reports how many questions have a recorded selection.
func (m *Machine) AnsweredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.selected)
}

// TotalQuestions reports the size of the working copy.
func (m *Machine) TotalQuestions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.questions)
}

// OnLastQuestion reports whether the cursor sits on the final question.
func (m *Machine) OnLastQuestion() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.questions) > 0 && m.current == len(m.questions)-1
}

// ElapsedSeconds reports the frozen or running timer value.
func (m *Machine) ElapsedSeconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

// SessionFlags returns a copy of the per-session flag set.
func (m *Machine) SessionFlags() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.flags))
	for id := range m.flags {
		out[id] = struct{}{}
	}
	return out
}

func hasOption(options []string, option string) bool {
	for _, o := range options {
		if o == option {
			return true
		}
	}
	return false
}
