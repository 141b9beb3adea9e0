package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/quizforge/backend/internal/domain/attempt"
	"github.com/quizforge/backend/internal/domain/quiz"
)

var (
	ErrNotFound = errors.New("not found")
)

// The four logical namespaces of the key-value gateway.
const (
	NamespaceCache   = "cache"   // quiz id → QuizData
	NamespaceHistory = "history" // quiz id → []Attempt
	NamespaceFlags   = "flags"   // single key: globally flagged question ids
	NamespaceTheme   = "theme"   // single key: theme preference
)

const (
	flagsKey = "global"
	themeKey = "preference"
)

// Gateway is the raw key-value contract: best-effort reads and writes of
// serialized blobs. It is a cache and convenience layer, not a system of
// record — callers must tolerate missing keys and lossy writes.
type Gateway interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	List(ctx context.Context, namespace string) (map[string][]byte, error)
}

// Store layers the application's typed reads and writes over a Gateway.
// Absent or corrupt blobs are treated as "start empty", never as errors.
type Store struct {
	kv Gateway
}

func New(kv Gateway) *Store {
	return &Store{kv: kv}
}

// ── Parsed-quiz cache ───────────────────────────────────────────────────────

func (s *Store) SaveQuiz(ctx context.Context, q quiz.QuizData) error {
	blob, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, NamespaceCache, q.ID, blob)
}

func (s *Store) GetQuiz(ctx context.Context, id string) (quiz.QuizData, error) {
	blob, err := s.kv.Get(ctx, NamespaceCache, id)
	if err != nil {
		return quiz.QuizData{}, err
	}
	var q quiz.QuizData
	if err := json.Unmarshal(blob, &q); err != nil {
		// Corrupt cache entry reads as absent.
		return quiz.QuizData{}, ErrNotFound
	}
	return q, nil
}

// ListQuizzes returns every cached quiz keyed by id, skipping corrupt
// entries.
func (s *Store) ListQuizzes(ctx context.Context) (map[string]quiz.QuizData, error) {
	blobs, err := s.kv.List(ctx, NamespaceCache)
	if err != nil {
		return nil, err
	}
	out := make(map[string]quiz.QuizData, len(blobs))
	for id, blob := range blobs {
		var q quiz.QuizData
		if err := json.Unmarshal(blob, &q); err != nil {
			continue
		}
		out[id] = q
	}
	return out, nil
}

// ── Attempt history ─────────────────────────────────────────────────────────

// Attempts returns a quiz's history in chronological (insertion) order.
// A quiz with no history reads as an empty list.
func (s *Store) Attempts(ctx context.Context, quizID string) ([]attempt.Attempt, error) {
	blob, err := s.kv.Get(ctx, NamespaceHistory, quizID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var attempts []attempt.Attempt
	if err := json.Unmarshal(blob, &attempts); err != nil {
		return nil, nil
	}
	return attempts, nil
}

// AppendAttempt adds one attempt to its quiz's history. This is the only
// mutation history ever undergoes: no edits, no deletions.
func (s *Store) AppendAttempt(ctx context.Context, a attempt.Attempt) error {
	attempts, err := s.Attempts(ctx, a.QuizID)
	if err != nil {
		return err
	}
	attempts = append(attempts, a)

	blob, err := json.Marshal(attempts)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, NamespaceHistory, a.QuizID, blob)
}

// AllAttempts returns the full history map, quiz id → attempts.
func (s *Store) AllAttempts(ctx context.Context) (map[string][]attempt.Attempt, error) {
	blobs, err := s.kv.List(ctx, NamespaceHistory)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]attempt.Attempt, len(blobs))
	for quizID, blob := range blobs {
		var attempts []attempt.Attempt
		if err := json.Unmarshal(blob, &attempts); err != nil {
			continue
		}
		out[quizID] = attempts
	}
	return out, nil
}

// ── Global flags ────────────────────────────────────────────────────────────

// Flags returns the global flag set. Missing or corrupt reads as empty.
func (s *Store) Flags(ctx context.Context) (map[string]struct{}, error) {
	blob, err := s.kv.Get(ctx, NamespaceFlags, flagsKey)
	if errors.Is(err, ErrNotFound) {
		return make(map[string]struct{}), nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(blob, &ids); err != nil {
		return make(map[string]struct{}), nil
	}
	flags := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		flags[id] = struct{}{}
	}
	return flags, nil
}

// SaveFlags persists the global flag set, serialized in sorted order.
func (s *Store) SaveFlags(ctx context.Context, flags map[string]struct{}) error {
	ids := make([]string, 0, len(flags))
	for id := range flags {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	blob, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, NamespaceFlags, flagsKey, blob)
}

// ── Theme preference ────────────────────────────────────────────────────────

func (s *Store) Theme(ctx context.Context) (string, error) {
	blob, err := s.kv.Get(ctx, NamespaceTheme, themeKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var theme string
	if err := json.Unmarshal(blob, &theme); err != nil {
		return "", nil
	}
	return theme, nil
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	blob, err := json.Marshal(theme)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, NamespaceTheme, themeKey, blob)
}
