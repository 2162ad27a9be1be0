package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ChoiceAnswer is a submitted single-choice value.
type ChoiceAnswer struct {
	Value    string
	Answered bool
}

// SelectionAnswer is a submitted multiple-correct selection.
type SelectionAnswer struct {
	Selected     []int
	NotAttempted bool
}

// NumericAnswer is a submitted integer answer.
type NumericAnswer struct {
	Value    int
	Answered bool
}

// AssertionAnswer is a submitted assertion/reason classification; zero means unanswered.
type AssertionAnswer struct {
	Selected int
}

// MatchAnswer is a submitted left-id to right-id pairing.
type MatchAnswer struct {
	Pairs map[string]string
}

func isEmptyRaw(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// DecodeChoiceAnswer accepts a string, a number, or an object with text/answer.
func DecodeChoiceAnswer(raw json.RawMessage) (ChoiceAnswer, error) {
	if isEmptyRaw(raw) {
		return ChoiceAnswer{}, nil
	}
	if s, ok := scalarString(raw); ok {
		return ChoiceAnswer{Value: s, Answered: strings.TrimSpace(s) != ""}, nil
	}
	var obj struct {
		Text   json.RawMessage `json:"text"`
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ChoiceAnswer{}, fmt.Errorf("decode choice answer: %w", err)
	}
	for _, field := range []json.RawMessage{obj.Text, obj.Answer} {
		if s, ok := scalarString(field); ok && strings.TrimSpace(s) != "" {
			return ChoiceAnswer{Value: s, Answered: true}, nil
		}
	}
	return ChoiceAnswer{}, nil
}

// DecodeSelectionAnswer accepts [0,2], ["0","2"] or {"selectedOptions":[...],"hasAttempted":bool}.
func DecodeSelectionAnswer(raw json.RawMessage) (SelectionAnswer, error) {
	if isEmptyRaw(raw) {
		return SelectionAnswer{}, nil
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] == '[' {
		sel, err := decodeIndexList(raw)
		if err != nil {
			return SelectionAnswer{}, err
		}
		return SelectionAnswer{Selected: sel}, nil
	}

	var obj struct {
		SelectedOptions json.RawMessage `json:"selectedOptions"`
		HasAttempted    *bool           `json:"hasAttempted"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return SelectionAnswer{}, fmt.Errorf("decode selection answer: %w", err)
	}
	ans := SelectionAnswer{NotAttempted: obj.HasAttempted != nil && !*obj.HasAttempted}
	if !isEmptyRaw(obj.SelectedOptions) {
		sel, err := decodeIndexList(obj.SelectedOptions)
		if err != nil {
			return ans, err
		}
		ans.Selected = sel
	}
	return ans, nil
}

// decodeIndexList reads option indices, dropping duplicates and negatives.
func decodeIndexList(raw json.RawMessage) ([]int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode option indices: %w", err)
	}
	seen := make(map[int]struct{}, len(items))
	out := make([]int, 0, len(items))
	for _, item := range items {
		s, ok := scalarString(item)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		n := ParseLooseInt(s)
		if n < 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// DecodeNumericAnswer accepts a number, a numeric string, or {"answer": ...}.
func DecodeNumericAnswer(raw json.RawMessage) (NumericAnswer, error) {
	if isEmptyRaw(raw) {
		return NumericAnswer{}, nil
	}
	if s, ok := scalarString(raw); ok {
		if strings.TrimSpace(s) == "" {
			return NumericAnswer{}, nil
		}
		return NumericAnswer{Value: ParseLooseInt(s), Answered: true}, nil
	}
	var obj struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return NumericAnswer{}, fmt.Errorf("decode numeric answer: %w", err)
	}
	if s, ok := scalarString(obj.Answer); ok && strings.TrimSpace(s) != "" {
		return NumericAnswer{Value: ParseLooseInt(s), Answered: true}, nil
	}
	return NumericAnswer{}, nil
}

// DecodeAssertionAnswer accepts 3, "3", or {"selectedOption": 3}. Values outside
// the five classifications are treated as unanswered.
func DecodeAssertionAnswer(raw json.RawMessage) (AssertionAnswer, error) {
	if isEmptyRaw(raw) {
		return AssertionAnswer{}, nil
	}
	s, ok := scalarString(raw)
	if !ok {
		var obj struct {
			SelectedOption json.RawMessage `json:"selectedOption"`
			Answer         json.RawMessage `json:"answer"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return AssertionAnswer{}, fmt.Errorf("decode assertion answer: %w", err)
		}
		if s, ok = scalarString(obj.SelectedOption); !ok {
			s, _ = scalarString(obj.Answer)
		}
	}
	n := ParseLooseInt(s)
	if !ValidAssertionOption(n) {
		return AssertionAnswer{}, nil
	}
	return AssertionAnswer{Selected: n}, nil
}

type matchPair struct {
	LeftID     json.RawMessage `json:"leftId"`
	RightID    json.RawMessage `json:"rightId"`
	LeftIndex  *int            `json:"leftIndex"`
	RightIndex *int            `json:"rightIndex"`
}

// DecodeMatchAnswer normalises a submitted pairing to a left-id to right-id map.
// Accepted shapes: {"L1":"R2"}, [{leftId,rightId}], [{leftIndex,rightIndex}] and
// {"matches":[...]}. Index pairs are resolved through the question's columns.
func DecodeMatchAnswer(raw json.RawMessage, spec *MatchFollowingSpec) (MatchAnswer, error) {
	ans := MatchAnswer{Pairs: map[string]string{}}
	if isEmptyRaw(raw) {
		return ans, nil
	}
	raw = bytes.TrimSpace(raw)

	var pairs []matchPair
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return ans, fmt.Errorf("decode match pairs: %w", err)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ans, fmt.Errorf("decode match answer: %w", err)
		}
		if nested, ok := obj["matches"]; ok && len(bytes.TrimSpace(nested)) > 0 && bytes.TrimSpace(nested)[0] == '[' {
			if err := json.Unmarshal(nested, &pairs); err != nil {
				return ans, fmt.Errorf("decode match pairs: %w", err)
			}
			break
		}
		for left, right := range obj {
			if s, ok := scalarString(right); ok && s != "" {
				ans.Pairs[left] = s
			}
		}
		return ans, nil
	default:
		return ans, fmt.Errorf("decode match answer: unexpected %q", raw[0])
	}

	for _, p := range pairs {
		left, lok := scalarString(p.LeftID)
		right, rok := scalarString(p.RightID)
		if lok && rok && left != "" && right != "" {
			ans.Pairs[left] = right
			continue
		}
		if p.LeftIndex == nil || p.RightIndex == nil || spec == nil {
			continue
		}
		li, ri := *p.LeftIndex, *p.RightIndex
		if li < 0 || li >= len(spec.Left) || ri < 0 || ri >= len(spec.Right) {
			continue
		}
		ans.Pairs[spec.Left[li].ID] = spec.Right[ri].ID
	}
	return ans, nil
}
