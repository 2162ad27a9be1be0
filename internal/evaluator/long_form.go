package evaluator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stemsi/exstem-results/internal/model"
)

// LongForm returns the manually awarded marks of a creative, short or
// descriptive question. Sub-part marks are summed when the question declares
// sub-parts; otherwise the single whole-question mark is used. Nothing is
// ever deducted.
func LongForm(in Input) Outcome {
	spec, _ := in.Question.Payload.(*model.LongFormSpec)
	attempted := !isBlank(in.Answer)

	if in.Manual == nil {
		return Outcome{Attempted: attempted, Feedback: "Awaiting manual grading."}
	}

	var score float64
	graded := false
	if spec != nil && len(spec.SubParts) > 0 && len(in.Manual.Parts) > 0 {
		for i, m := range in.Manual.Parts {
			if i >= len(spec.SubParts) {
				break
			}
			score += clampPart(m, spec.SubParts[i].Marks)
		}
		graded = true
	} else if in.Manual.Marks != nil {
		score = *in.Manual.Marks
		graded = true
	}

	if !graded {
		return Outcome{Attempted: attempted, Feedback: "Awaiting manual grading."}
	}
	if score < 0 {
		score = 0
	}
	if in.Question.Marks > 0 && score > in.Question.Marks {
		score = in.Question.Marks
	}
	score = Round2(score)
	return Outcome{
		Score:     score,
		Correct:   in.Question.Marks > 0 && score == in.Question.Marks,
		Attempted: attempted || score > 0,
		Feedback:  fmt.Sprintf("Awarded %.2f of %.2f marks.", score, in.Question.Marks),
	}
}

// clampPart keeps a sub-part mark within [0, limit] when limit is declared.
func clampPart(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

func isBlank(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`))
}
