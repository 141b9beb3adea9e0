package extract

import (
	"encoding/csv"
	"strings"

	"github.com/quizforge/backend/internal/domain/quiz"
)

// parseCSV tries the line-oriented table convention:
//
//	Question, OptionA, OptionB, OptionC, OptionD, Answer
//
// or the alternate three-column form with pipe-delimited options:
//
//	Question, Option1|Option2|Option3, Answer
//
// The answer column is either the option text verbatim or a letter
// (A-D) indexing into the options. Parsing is strict: every non-empty
// row must conform, or the whole fast path is declined and the text
// goes to the LLM instead.
func parseCSV(text string) ([]quiz.Question, bool) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, false
	}

	var questions []quiz.Question
	for i, record := range records {
		if isBlankRecord(record) {
			continue
		}
		if i == 0 && isHeaderRecord(record) {
			continue
		}

		q, ok := parseRecord(record)
		if !ok {
			return nil, false
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func parseRecord(record []string) (quiz.Question, bool) {
	fields := make([]string, len(record))
	for i, f := range record {
		fields[i] = strings.TrimSpace(f)
	}

	var text string
	var options []string
	var answerField string

	switch {
	case len(fields) == 6:
		text = fields[0]
		options = fields[1:5]
		answerField = fields[5]
	case len(fields) == 3 && strings.Contains(fields[1], "|"):
		text = fields[0]
		for _, opt := range strings.Split(fields[1], "|") {
			options = append(options, strings.TrimSpace(opt))
		}
		answerField = fields[2]
	default:
		return quiz.Question{}, false
	}

	if text == "" || answerField == "" {
		return quiz.Question{}, false
	}
	for _, opt := range options {
		if opt == "" {
			return quiz.Question{}, false
		}
	}

	answer, ok := resolveAnswer(answerField, options)
	if !ok {
		return quiz.Question{}, false
	}

	return quiz.Question{
		Text:          text,
		Options:       options,
		CorrectAnswer: answer,
	}, true
}

// resolveAnswer accepts either a single letter (A-D, case-insensitive)
// or the literal text of one of the options.
func resolveAnswer(answer string, options []string) (string, bool) {
	if len(answer) == 1 {
		upper := strings.ToUpper(answer)
		idx := int(upper[0] - 'A')
		if idx >= 0 && idx < len(options) {
			return options[idx], true
		}
	}
	for _, opt := range options {
		if opt == answer {
			return opt, true
		}
	}
	return "", false
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// isHeaderRecord detects the conventional header row so exported tables
// round-trip without the header becoming a question.
func isHeaderRecord(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "question"
}
