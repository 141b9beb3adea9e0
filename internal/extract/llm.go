package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quizforge/backend/internal/domain/quiz"
)

// LLMExtractor converts study material into multiple-choice quizzes by
// calling an OpenAI-compatible LLM endpoint (Ollama, LM Studio, vLLM, etc.).
type LLMExtractor struct {
	url    string       // e.g. "http://localhost:1234"
	model  string       // e.g. "qwen3-8b"
	client *http.Client // reused across calls
}

// Compile-time check: *LLMExtractor satisfies the Extractor interface.
var _ Extractor = (*LLMExtractor)(nil)

// NewLLMExtractor creates an extractor that calls the given LLM endpoint.
func NewLLMExtractor(url, model string) *LLMExtractor {
	return &LLMExtractor{
		url:   url,
		model: model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

const maxRetries = 2

// extractedQuiz is the shape the model is asked to return.
type extractedQuiz struct {
	Title     string `json:"title"`
	Questions []struct {
		Text          string   `json:"text"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correct_answer"`
	} `json:"questions"`
}

// Extract turns the input into a validated QuizData. Text that parses
// cleanly under the CSV convention skips the LLM round trip entirely.
//
// It retries once on parse failure (small models sometimes need a second try).
func (e *LLMExtractor) Extract(ctx context.Context, in Input) (quiz.QuizData, error) {
	text, err := inputText(in)
	if err != nil {
		return quiz.QuizData{}, err
	}

	if questions, ok := parseCSV(text); ok {
		return finalize(titleFromInput(in), questions)
	}

	prompt := buildExtractionPrompt(text)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		raw, err := e.callLLM(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		jsonStr := extractJSON(raw)
		if jsonStr == "" {
			lastErr = &ExtractError{Reason: "no JSON object found in LLM response"}
			continue
		}

		var parsed extractedQuiz
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
			lastErr = &ExtractError{Reason: "invalid JSON from LLM", Wrapped: err}
			continue
		}

		questions := make([]quiz.Question, len(parsed.Questions))
		for i, q := range parsed.Questions {
			questions[i] = quiz.Question{
				Text:          q.Text,
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
			}
		}

		title := parsed.Title
		if strings.TrimSpace(title) == "" {
			title = titleFromInput(in)
		}

		qd, err := finalize(title, questions)
		if err != nil {
			lastErr = err
			continue
		}
		return qd, nil
	}

	return quiz.QuizData{}, &ExtractError{
		Reason:  fmt.Sprintf("failed after %d attempts", maxRetries),
		Wrapped: lastErr,
	}
}

// inputText resolves file uploads into text. Only text-like payloads are
// accepted; binary formats need a different ingestion path.
func inputText(in Input) (string, error) {
	text := in.Text
	if len(in.Data) > 0 {
		if !textLikeMIME(in.MIMEType) {
			return "", &ExtractError{Reason: fmt.Sprintf("unsupported file type %q", in.MIMEType)}
		}
		text = string(in.Data)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	return text, nil
}

func textLikeMIME(mime string) bool {
	mime = strings.ToLower(mime)
	return strings.HasPrefix(mime, "text/") ||
		strings.Contains(mime, "csv") ||
		strings.Contains(mime, "json") ||
		strings.Contains(mime, "markdown")
}

func titleFromInput(in Input) string {
	if in.FileName != "" {
		name := in.FileName
		if i := strings.LastIndex(name, "."); i > 0 {
			name = name[:i]
		}
		return name
	}
	return "Imported Quiz"
}

// finalize validates the extracted shape and stamps canonical identity:
// the content signature, then per-question ids over parse order. Ids are
// assigned before any shuffle ever sees the data.
func finalize(title string, questions []quiz.Question) (quiz.QuizData, error) {
	qd := quiz.QuizData{Title: title, Questions: questions}
	if err := quiz.Validate(qd); err != nil {
		return quiz.QuizData{}, &ExtractError{Reason: "malformed quiz data", Wrapped: err}
	}

	texts := make([]string, len(qd.Questions))
	for i, q := range qd.Questions {
		texts[i] = q.Text
	}
	qd.ID = quiz.Signature(texts)
	quiz.AssignIDs(qd.ID, qd.Questions)

	return qd, nil
}

// ── LLM communication ───────────────────────────────────────────────────────

type llmRequest struct {
	Model       string       `json:"model"`
	Messages    []llmMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// callLLM sends a single request to the LLM and returns the raw text response.
func (e *LLMExtractor) callLLM(ctx context.Context, prompt string) (string, error) {
	reqBody := llmRequest{
		Model: e.model,
		Messages: []llmMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM returned status %d", resp.StatusCode)
	}

	var llmResp llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("failed to decode LLM response: %w", err)
	}

	if len(llmResp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	content := llmResp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("LLM returned empty content")
	}

	return content, nil
}

// buildExtractionPrompt keeps the instructions short and directive for
// small (4-8B) models, and puts the JSON schema last so it's the final
// thing the model sees.
func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(`/no_think
You are converting study material into a multiple-choice quiz.

RULES:
- Produce between 3 and 20 questions covering the material.
- Every question has 2 to 5 answer options, exactly one of them correct.
- "correct_answer" must be copied verbatim from that question's "options".
- The input may already be a table of the form:
  Question, OptionA, OptionB, OptionC, OptionD, Answer
  or with pipe-delimited options (Option1|Option2|Option3). If so, keep
  its questions and answers exactly as written.

INPUT:
%s

Respond with ONLY this JSON — no explanation, no markdown:
{"title": "quiz title", "questions": [{"text": "...", "options": ["...", "..."], "correct_answer": "..."}]}`, text)
}

// extractJSON finds the outermost JSON object in a string.
// It handles nested braces correctly and skips braces inside quoted strings.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
