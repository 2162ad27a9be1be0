// Package evaluator scores a single question against a submitted answer.
// Every question type has exactly one registered strategy.
package evaluator

import (
	"encoding/json"
	"math"

	"github.com/stemsi/exstem-results/internal/model"
)

// Settings are the exam-wide marking rules applied to objective questions.
type Settings struct {
	NegativePercent float64
	PartialMarking  bool
}

// Input is everything a strategy needs to score one question.
type Input struct {
	Question model.Question
	Answer   json.RawMessage
	Manual   *model.ManualMark
	Settings Settings
}

// Outcome is the score of one question. Score may be negative for penalised
// objective answers. AnswerErr is set when the submitted answer could not be
// decoded; the answer was then scored as empty.
type Outcome struct {
	Score     float64
	Correct   bool
	Attempted bool
	Feedback  string
	AnswerErr error
}

// Evaluator scores one question type.
type Evaluator interface {
	Evaluate(in Input) Outcome
}

// Func adapts a plain function to Evaluator.
type Func func(in Input) Outcome

// Evaluate calls f(in).
func (f Func) Evaluate(in Input) Outcome { return f(in) }

// Registry dispatches questions to the strategy registered for their type.
type Registry struct {
	byType map[model.QuestionType]Evaluator
}

// NewRegistry returns a registry with the built-in strategies for every known type.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[model.QuestionType]Evaluator)}
	r.Register(model.QuestionTypeSingleCorrect, Func(SingleCorrect))
	r.Register(model.QuestionTypeMultiCorrect, Func(MultiCorrect))
	r.Register(model.QuestionTypeNumeric, Func(Numeric))
	r.Register(model.QuestionTypeAssertionReason, Func(AssertionReason))
	r.Register(model.QuestionTypeMatchFollowing, Func(MatchFollowing))
	r.Register(model.QuestionTypeCreative, Func(LongForm))
	r.Register(model.QuestionTypeShort, Func(LongForm))
	r.Register(model.QuestionTypeDescriptive, Func(LongForm))
	return r
}

// Register replaces the strategy for t.
func (r *Registry) Register(t model.QuestionType, e Evaluator) {
	r.byType[t] = e
}

// Evaluate scores in.Question. ok is false when no strategy is registered for its type.
func (r *Registry) Evaluate(in Input) (Outcome, bool) {
	e, ok := r.byType[in.Question.Type]
	if !ok {
		return Outcome{Feedback: "Unsupported question type."}, false
	}
	return e.Evaluate(in), true
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// penalty is the signed score of a wrong objective answer.
func penalty(marks float64, s Settings) float64 {
	if s.NegativePercent <= 0 {
		return 0
	}
	return Round2(-(marks * s.NegativePercent / 100))
}
