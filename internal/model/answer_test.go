package model

import (
	"encoding/json"
	"testing"
)

func TestDecodeChoiceAnswer(t *testing.T) {
	tests := []struct {
		raw      string
		value    string
		answered bool
	}{
		{``, "", false},
		{`null`, "", false},
		{`"  "`, "  ", false},
		{`"B"`, "B", true},
		{`4`, "4", true},
		{`{"text":"Paris"}`, "Paris", true},
		{`{"answer":"C"}`, "C", true},
	}

	for _, tt := range tests {
		got, err := DecodeChoiceAnswer(json.RawMessage(tt.raw))
		if err != nil {
			t.Fatalf("DecodeChoiceAnswer(%s): %v", tt.raw, err)
		}
		if got.Answered != tt.answered || (tt.answered && got.Value != tt.value) {
			t.Errorf("DecodeChoiceAnswer(%s) = %+v", tt.raw, got)
		}
	}
}

func TestDecodeSelectionAnswer(t *testing.T) {
	got, err := DecodeSelectionAnswer(json.RawMessage(`[0, "2", 2, -1]`))
	if err != nil {
		t.Fatalf("DecodeSelectionAnswer: %v", err)
	}
	if len(got.Selected) != 2 || got.Selected[0] != 0 || got.Selected[1] != 2 {
		t.Errorf("selected = %v", got.Selected)
	}

	got, err = DecodeSelectionAnswer(json.RawMessage(`{"selectedOptions":[1],"hasAttempted":false}`))
	if err != nil {
		t.Fatalf("DecodeSelectionAnswer: %v", err)
	}
	if !got.NotAttempted || len(got.Selected) != 1 {
		t.Errorf("object form = %+v", got)
	}

	if _, err := DecodeSelectionAnswer(json.RawMessage(`"oops"`)); err == nil {
		t.Errorf("expected error for string selection")
	}
}

func TestDecodeNumericAnswer(t *testing.T) {
	tests := []struct {
		raw      string
		value    int
		answered bool
	}{
		{`null`, 0, false},
		{`""`, 0, false},
		{`0`, 0, true},
		{`"17"`, 17, true},
		{`{"answer":9}`, 9, true},
		{`{"answer":null}`, 0, false},
		{`"x"`, 0, true},
	}
	for _, tt := range tests {
		got, err := DecodeNumericAnswer(json.RawMessage(tt.raw))
		if err != nil {
			t.Fatalf("DecodeNumericAnswer(%s): %v", tt.raw, err)
		}
		if got.Value != tt.value || got.Answered != tt.answered {
			t.Errorf("DecodeNumericAnswer(%s) = %+v", tt.raw, got)
		}
	}
}

func TestDecodeAssertionAnswer(t *testing.T) {
	tests := map[string]int{
		`3`:                    3,
		`"5"`:                  5,
		`{"selectedOption":2}`: 2,
		`0`:                    0,
		`9`:                    0,
		`null`:                 0,
	}
	for raw, want := range tests {
		got, err := DecodeAssertionAnswer(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("DecodeAssertionAnswer(%s): %v", raw, err)
		}
		if got.Selected != want {
			t.Errorf("DecodeAssertionAnswer(%s) = %d, want %d", raw, got.Selected, want)
		}
	}
}

func TestDecodeMatchAnswer(t *testing.T) {
	spec := &MatchFollowingSpec{
		Left:  []MatchItem{{ID: "L1"}, {ID: "L2"}},
		Right: []MatchItem{{ID: "R1"}, {ID: "R2"}},
	}

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"direct map", `{"L1":"R2","L2":"R1"}`, map[string]string{"L1": "R2", "L2": "R1"}},
		{"id pairs", `[{"leftId":"L1","rightId":"R1"}]`, map[string]string{"L1": "R1"}},
		{"index pairs", `{"matches":[{"leftIndex":1,"rightIndex":0},{"leftIndex":5,"rightIndex":0}]}`, map[string]string{"L2": "R1"}},
		{"empty", `null`, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMatchAnswer(json.RawMessage(tt.raw), spec)
			if err != nil {
				t.Fatalf("DecodeMatchAnswer: %v", err)
			}
			if len(got.Pairs) != len(tt.want) {
				t.Fatalf("pairs = %v, want %v", got.Pairs, tt.want)
			}
			for k, v := range tt.want {
				if got.Pairs[k] != v {
					t.Errorf("pair %s = %q, want %q", k, got.Pairs[k], v)
				}
			}
		})
	}
}
