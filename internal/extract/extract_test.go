package extract_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quizforge/backend/internal/extract"
)

// csvOnly points at an address no request should ever reach, so a test
// failing over to the LLM path fails loudly instead of passing by luck.
func csvOnly() *extract.LLMExtractor {
	return extract.NewLLMExtractor("http://127.0.0.1:1", "test-model")
}

func TestExtract_CSVSixColumn(t *testing.T) {
	text := `Question, OptionA, OptionB, OptionC, OptionD, Answer
What is the capital of France?, Paris, London, Berlin, Madrid, A
What is 2 + 2?, 3, 4, 5, 6, 4`

	qd, err := csvOnly().Extract(context.Background(), extract.Input{Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(qd.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qd.Questions))
	}
	if qd.Questions[0].CorrectAnswer != "Paris" {
		t.Errorf("expected letter answer resolved to %q, got %q", "Paris", qd.Questions[0].CorrectAnswer)
	}
	if qd.Questions[1].CorrectAnswer != "4" {
		t.Errorf("expected literal answer %q, got %q", "4", qd.Questions[1].CorrectAnswer)
	}
	if !strings.HasPrefix(qd.ID, "quiz-") {
		t.Errorf("expected signature quiz id, got %q", qd.ID)
	}
	want := qd.ID + "-q-0"
	if qd.Questions[0].ID != want {
		t.Errorf("expected question id %q, got %q", want, qd.Questions[0].ID)
	}
}

func TestExtract_CSVPipeDelimited(t *testing.T) {
	text := `Which planet is closest to the sun?, Mercury|Venus|Earth, Mercury
Which planet is largest?, Jupiter|Saturn|Neptune, A`

	qd, err := csvOnly().Extract(context.Background(), extract.Input{Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(qd.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qd.Questions))
	}
	if len(qd.Questions[0].Options) != 3 {
		t.Errorf("expected 3 options, got %v", qd.Questions[0].Options)
	}
	if qd.Questions[1].CorrectAnswer != "Jupiter" {
		t.Errorf("expected %q, got %q", "Jupiter", qd.Questions[1].CorrectAnswer)
	}
}

func TestExtract_CSVFromUploadedFile(t *testing.T) {
	data := []byte("Capital of Japan?, Tokyo|Osaka, Tokyo\n")

	qd, err := csvOnly().Extract(context.Background(), extract.Input{
		FileName: "japan-quiz.csv",
		MIMEType: "text/csv",
		Data:     data,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if qd.Title != "japan-quiz" {
		t.Errorf("expected title derived from file name, got %q", qd.Title)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	cases := []extract.Input{
		{},
		{Text: "   \n\t "},
	}
	for _, in := range cases {
		_, err := csvOnly().Extract(context.Background(), in)
		if !errors.Is(err, extract.ErrEmptyInput) {
			t.Errorf("input %+v: expected ErrEmptyInput, got %v", in, err)
		}
	}
}

func TestExtract_BinaryUploadRejected(t *testing.T) {
	_, err := csvOnly().Extract(context.Background(), extract.Input{
		FileName: "slides.pdf",
		MIMEType: "application/pdf",
		Data:     []byte{0x25, 0x50, 0x44, 0x46},
	})

	var exErr *extract.ExtractError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
}

func TestExtract_LLMPath(t *testing.T) {
	payload := map[string]any{
		"title": "Go Basics",
		"questions": []map[string]any{
			{"text": "What starts a goroutine?", "options": []string{"go", "run", "spawn"}, "correct_answer": "go"},
			{"text": "What is a channel for?", "options": []string{"communication", "storage"}, "correct_answer": "communication"},
		},
	}
	quizJSON, _ := json.Marshal(payload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("expected model test-model, got %v", req["model"])
		}

		// Chatter around the JSON exercises the brace matcher.
		content := "Here is your quiz:\n" + string(quizJSON) + "\nEnjoy!"
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := extract.NewLLMExtractor(srv.URL, "test-model")
	qd, err := e.Extract(context.Background(), extract.Input{Text: "Go is a programming language with goroutines and channels."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if qd.Title != "Go Basics" {
		t.Errorf("expected title from LLM, got %q", qd.Title)
	}
	if len(qd.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qd.Questions))
	}
	if !strings.HasPrefix(qd.ID, "quiz-") {
		t.Errorf("expected signature quiz id, got %q", qd.ID)
	}
	for i, q := range qd.Questions {
		if q.ID == "" {
			t.Errorf("question %d missing id", i)
		}
	}
}

func TestExtract_LLMRetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var content string
		if calls == 1 {
			content = "I could not find any questions, sorry."
		} else {
			content = `{"title": "Retry", "questions": [{"text": "q", "options": ["a", "b"], "correct_answer": "a"}]}`
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := extract.NewLLMExtractor(srv.URL, "test-model")
	qd, err := e.Extract(context.Background(), extract.Input{Text: "some study material"})
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if qd.Title != "Retry" {
		t.Errorf("unexpected title %q", qd.Title)
	}
}

func TestExtract_LLMPersistentGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "no json here at all"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := extract.NewLLMExtractor(srv.URL, "test-model")
	_, err := e.Extract(context.Background(), extract.Input{Text: "some study material"})

	var exErr *extract.ExtractError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractError after exhausted retries, got %v", err)
	}
}

func TestExtract_LLMInvalidQuizRejected(t *testing.T) {
	// Well-formed JSON whose answer is not among the options.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"title": "Bad", "questions": [{"text": "q", "options": ["a", "b"], "correct_answer": "z"}]}`
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := extract.NewLLMExtractor(srv.URL, "test-model")
	_, err := e.Extract(context.Background(), extract.Input{Text: "some study material"})

	var exErr *extract.ExtractError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
}

func TestExtract_MalformedCSVGoesToLLM(t *testing.T) {
	// A row with five columns fits neither CSV form, so the text must be
	// handed to the model instead of being silently dropped.
	reached := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		content := `{"title": "Fallback", "questions": [{"text": "q", "options": ["a", "b"], "correct_answer": "a"}]}`
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := extract.NewLLMExtractor(srv.URL, "test-model")
	text := "Question one, a, b, c, A\nnot a table at all"
	if _, err := e.Extract(context.Background(), extract.Input{Text: text}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reached {
		t.Error("expected malformed table to fall back to the LLM")
	}
}
