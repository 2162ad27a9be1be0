package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// rawQuestion mirrors the loosely-typed question documents stored per question
// set. Several fields have historical aliases.
type rawQuestion struct {
	ID           json.RawMessage `json:"id"`
	Type         string          `json:"type"`
	QuestionType string          `json:"questionType"`
	Marks        json.RawMessage `json:"marks"`
	Text         string          `json:"text"`
	QuestionText string          `json:"questionText"`

	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Correct       json.RawMessage `json:"correct"`
	ModelAnswer   json.RawMessage `json:"modelAnswer"`
	Answer        json.RawMessage `json:"answer"`
	CorrectOption json.RawMessage `json:"correctOption"`

	Assertion string `json:"assertion"`
	Reason    string `json:"reason"`

	LeftColumn     json.RawMessage `json:"leftColumn"`
	RightColumn    json.RawMessage `json:"rightColumn"`
	Matches        json.RawMessage `json:"matches"`
	CorrectMatches json.RawMessage `json:"correctMatches"`

	SubQuestions json.RawMessage `json:"subQuestions"`
	SubParts     json.RawMessage `json:"subParts"`
}

// ParseQuestions decodes a stored question-set document into typed questions.
// The document may itself be a JSON string holding the array. Questions that
// cannot be decoded are skipped and reported in issues; the rest are returned.
func ParseQuestions(raw []byte) ([]Question, []error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, []error{fmt.Errorf("decode question set string: %w", err)}
		}
		raw = []byte(inner)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, []error{fmt.Errorf("decode question set: %w", err)}
	}

	var (
		questions []Question
		issues    []error
	)
	for i, item := range items {
		q, err := parseQuestion(item)
		if err != nil {
			issues = append(issues, fmt.Errorf("question %d: %w", i, err))
			continue
		}
		questions = append(questions, q)
	}
	return questions, issues
}

func parseQuestion(item json.RawMessage) (Question, error) {
	var rq rawQuestion
	if err := json.Unmarshal(item, &rq); err != nil {
		return Question{}, fmt.Errorf("decode: %w", err)
	}

	id, ok := scalarString(rq.ID)
	if !ok || id == "" {
		return Question{}, fmt.Errorf("missing id")
	}

	typeName := rq.Type
	if typeName == "" {
		typeName = rq.QuestionType
	}
	qt, ok := ParseQuestionType(typeName)
	if !ok {
		return Question{}, fmt.Errorf("question %s: unknown type %q", id, typeName)
	}

	marks, _ := scalarFloat(rq.Marks)
	if marks < 0 {
		marks = 0
	}

	text := rq.Text
	if text == "" {
		text = rq.QuestionText
	}

	q := Question{ID: id, Type: qt, Marks: marks, Text: text}

	switch qt {
	case QuestionTypeSingleCorrect:
		spec := &SingleCorrectSpec{Options: parseOptions(rq.Options)}
		spec.AcceptedValues = append(spec.AcceptedValues, acceptedValues(rq.CorrectAnswer)...)
		spec.AcceptedValues = append(spec.AcceptedValues, acceptedValues(rq.Correct)...)
		q.Payload = spec
	case QuestionTypeMultiCorrect:
		q.Payload = &MultiCorrectSpec{Options: parseOptions(rq.Options)}
	case QuestionTypeNumeric:
		spec := &NumericSpec{}
		for _, alias := range []json.RawMessage{rq.ModelAnswer, rq.CorrectAnswer, rq.Answer} {
			if s, ok := scalarString(alias); ok && s != "" {
				spec.CorrectValue = ParseLooseInt(s)
				spec.HasKey = true
				break
			}
		}
		q.Payload = spec
	case QuestionTypeAssertionReason:
		spec := &AssertionReasonSpec{Assertion: rq.Assertion, Reason: rq.Reason}
		for _, alias := range []json.RawMessage{rq.CorrectOption, rq.Correct, rq.CorrectAnswer} {
			if s, ok := scalarString(alias); ok && s != "" {
				if n := ParseLooseInt(s); ValidAssertionOption(n) {
					spec.CorrectOption = n
					break
				}
			}
		}
		q.Payload = spec
	case QuestionTypeMatchFollowing:
		spec := &MatchFollowingSpec{
			Left:  parseMatchItems(rq.LeftColumn),
			Right: parseMatchItems(rq.RightColumn),
			Pairs: parsePairs(rq.Matches),
		}
		if len(spec.Pairs) == 0 {
			spec.Pairs = parsePairs(rq.CorrectMatches)
		}
		q.Payload = spec
	default:
		parts := rq.SubQuestions
		if len(bytes.TrimSpace(parts)) == 0 || bytes.Equal(bytes.TrimSpace(parts), []byte("null")) {
			parts = rq.SubParts
		}
		q.Payload = &LongFormSpec{SubParts: parseSubParts(parts)}
	}

	return q, nil
}

// parseOptions accepts [{text,isCorrect}] or plain strings. Plain strings are never correct.
func parseOptions(raw json.RawMessage) []ChoiceOption {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	opts := make([]ChoiceOption, 0, len(items))
	for _, item := range items {
		if s, ok := scalarString(item); ok {
			opts = append(opts, ChoiceOption{Text: s})
			continue
		}
		var o struct {
			Text      json.RawMessage `json:"text"`
			IsCorrect bool            `json:"isCorrect"`
		}
		if err := json.Unmarshal(item, &o); err != nil {
			opts = append(opts, ChoiceOption{})
			continue
		}
		text, _ := scalarString(o.Text)
		opts = append(opts, ChoiceOption{Text: text, IsCorrect: o.IsCorrect})
	}
	return opts
}

// acceptedValues flattens a raw correct-value field: number, string,
// object with a text field, or an array of accepted values.
func acceptedValues(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if s, ok := scalarString(raw); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []string
		for _, item := range items {
			out = append(out, acceptedValues(item)...)
		}
		return out
	case '{':
		var obj struct {
			Text json.RawMessage `json:"text"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		if s, ok := scalarString(obj.Text); ok && s != "" {
			return []string{s}
		}
	}
	return nil
}

func parseMatchItems(raw json.RawMessage) []MatchItem {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]MatchItem, 0, len(items))
	for _, item := range items {
		var m struct {
			ID   json.RawMessage `json:"id"`
			Text string          `json:"text"`
		}
		if err := json.Unmarshal(item, &m); err != nil {
			continue
		}
		id, _ := scalarString(m.ID)
		out = append(out, MatchItem{ID: id, Text: m.Text})
	}
	return out
}

func parsePairs(raw json.RawMessage) map[string]string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := scalarString(v); ok && s != "" {
			out[k] = s
		}
	}
	return out
}

func parseSubParts(raw json.RawMessage) []SubPart {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]SubPart, 0, len(items))
	for _, item := range items {
		var p struct {
			Text     string          `json:"text"`
			Question string          `json:"question"`
			Marks    json.RawMessage `json:"marks"`
		}
		if err := json.Unmarshal(item, &p); err != nil {
			out = append(out, SubPart{})
			continue
		}
		marks, _ := scalarFloat(p.Marks)
		text := p.Text
		if text == "" {
			text = p.Question
		}
		out = append(out, SubPart{Text: text, Marks: marks})
	}
	return out
}

// scalarString renders a JSON string or number as a string.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch {
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

func scalarFloat(raw json.RawMessage) (float64, bool) {
	s, ok := scalarString(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseLooseInt reads the leading integer of s ("42", " 7 ", "3.9", "12abc").
// Unparsable input yields 0.
func ParseLooseInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
