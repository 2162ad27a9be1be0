package evaluator

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/stemsi/exstem-results/internal/model"
)

var folder = cases.Fold()

// normalizeChoice trims and case-folds a choice so "Paris ", "paris" and "PARIS" compare equal.
func normalizeChoice(s string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(s)))
}

// SingleCorrect scores an MCQ. The answer is compared with the option flagged
// correct, then with the raw accepted values.
func SingleCorrect(in Input) Outcome {
	spec, _ := in.Question.Payload.(*model.SingleCorrectSpec)
	if spec == nil {
		return Outcome{Feedback: "No answer key."}
	}

	ans, err := model.DecodeChoiceAnswer(in.Answer)
	if !ans.Answered {
		return Outcome{Feedback: "Not answered.", AnswerErr: err}
	}

	var keys []string
	for _, o := range spec.Options {
		if o.IsCorrect {
			keys = append(keys, o.Text)
		}
	}
	keys = append(keys, spec.AcceptedValues...)
	if len(keys) == 0 {
		return Outcome{Attempted: true, Feedback: "No answer key."}
	}

	given := normalizeChoice(ans.Value)
	for _, k := range keys {
		if given == normalizeChoice(k) {
			return Outcome{Score: in.Question.Marks, Correct: true, Attempted: true, Feedback: "Correct."}
		}
	}
	return Outcome{
		Score:     penalty(in.Question.Marks, in.Settings),
		Attempted: true,
		Feedback:  fmt.Sprintf("Incorrect. Correct answer: %s.", keys[0]),
	}
}

// MultiCorrect scores a multiple-correct question with optional partial credit.
// The score always stays within [0, marks].
func MultiCorrect(in Input) Outcome {
	spec, _ := in.Question.Payload.(*model.MultiCorrectSpec)
	if spec == nil {
		return Outcome{Feedback: "No answer key."}
	}
	correct := spec.CorrectIndices()
	if len(correct) == 0 {
		return Outcome{Feedback: "No answer key."}
	}

	ans, err := model.DecodeSelectionAnswer(in.Answer)
	if ans.NotAttempted || len(ans.Selected) == 0 {
		return Outcome{Feedback: "Not answered.", AnswerErr: err}
	}

	isCorrect := make(map[int]bool, len(correct))
	for _, i := range correct {
		isCorrect[i] = true
	}
	var right, wrong int
	for _, i := range ans.Selected {
		if isCorrect[i] {
			right++
		} else {
			wrong++
		}
	}

	marks := in.Question.Marks
	if right == len(correct) && wrong == 0 {
		return Outcome{Score: marks, Correct: true, Attempted: true, Feedback: "All correct options selected."}
	}
	if !in.Settings.PartialMarking {
		return Outcome{Attempted: true, Feedback: "Incorrect selection."}
	}

	raw := float64(right) / float64(len(correct)) * marks
	deduct := float64(wrong) * (in.Settings.NegativePercent / 100) * marks
	score := Round2(raw - deduct)
	if score < 0 {
		score = 0
	}
	return Outcome{
		Score:     score,
		Attempted: true,
		Feedback:  fmt.Sprintf("Selected %d of %d correct options with %d incorrect.", right, len(correct), wrong),
	}
}

// Numeric scores an exact-integer question. Unanswered is never penalised.
func Numeric(in Input) Outcome {
	spec, _ := in.Question.Payload.(*model.NumericSpec)
	if spec == nil || !spec.HasKey {
		return Outcome{Feedback: "No answer key."}
	}

	ans, err := model.DecodeNumericAnswer(in.Answer)
	if !ans.Answered {
		return Outcome{Feedback: "Not answered.", AnswerErr: err}
	}
	if ans.Value == spec.CorrectValue {
		return Outcome{Score: in.Question.Marks, Correct: true, Attempted: true, Feedback: "Correct."}
	}
	return Outcome{
		Score:     penalty(in.Question.Marks, in.Settings),
		Attempted: true,
		Feedback:  fmt.Sprintf("Incorrect. Correct answer: %d.", spec.CorrectValue),
	}
}

var assertionLabels = map[int]string{
	model.AssertionBothTrueExplains:    "both true, reason explains assertion",
	model.AssertionBothTrueNotExplains: "both true, reason does not explain assertion",
	model.AssertionTrueReasonFalse:     "assertion true, reason false",
	model.AssertionFalseReasonTrue:     "assertion false, reason true",
	model.AssertionBothFalse:           "both false",
}

// AssertionReason scores a five-way assertion/reason classification.
func AssertionReason(in Input) Outcome {
	spec, _ := in.Question.Payload.(*model.AssertionReasonSpec)
	if spec == nil || !model.ValidAssertionOption(spec.CorrectOption) {
		return Outcome{Feedback: "No answer key."}
	}

	ans, err := model.DecodeAssertionAnswer(in.Answer)
	if ans.Selected == 0 {
		return Outcome{Feedback: "Not answered.", AnswerErr: err}
	}
	if ans.Selected == spec.CorrectOption {
		return Outcome{Score: in.Question.Marks, Correct: true, Attempted: true, Feedback: "Correct."}
	}
	return Outcome{
		Score:     penalty(in.Question.Marks, in.Settings),
		Attempted: true,
		Feedback:  fmt.Sprintf("Incorrect. Correct option: %d (%s).", spec.CorrectOption, assertionLabels[spec.CorrectOption]),
	}
}

// MatchFollowing awards marks per correctly matched left item. It is never
// penalised, whatever the exam's negative marking.
func MatchFollowing(in Input) Outcome {
	spec, _ := in.Question.Payload.(*model.MatchFollowingSpec)
	if spec == nil || len(spec.Left) == 0 || len(spec.Pairs) == 0 {
		return Outcome{Feedback: "No answer key."}
	}

	ans, err := model.DecodeMatchAnswer(in.Answer, spec)
	if len(ans.Pairs) == 0 {
		return Outcome{Feedback: "Not answered.", AnswerErr: err}
	}

	// Only left-column items count; key entries for unknown ids are ignored.
	matched := 0
	for _, item := range spec.Left {
		right, ok := spec.Pairs[item.ID]
		if !ok {
			continue
		}
		if got, ok := ans.Pairs[item.ID]; ok && got == right {
			matched++
		}
	}

	total := len(spec.Left)
	perPair := in.Question.Marks / float64(total)
	return Outcome{
		Score:     Round2(float64(matched) * perPair),
		Correct:   matched == total,
		Attempted: true,
		Feedback:  fmt.Sprintf("Correctly matched %d out of %d pairs.", matched, total),
	}
}
