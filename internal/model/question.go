package model

import "strings"

// QuestionType is the closed set of question kinds the engine can evaluate.
type QuestionType string

const (
	QuestionTypeSingleCorrect   QuestionType = "MCQ"
	QuestionTypeMultiCorrect    QuestionType = "MC"
	QuestionTypeNumeric         QuestionType = "INT"
	QuestionTypeAssertionReason QuestionType = "AR"
	QuestionTypeMatchFollowing  QuestionType = "MTF"
	QuestionTypeCreative        QuestionType = "CQ"
	QuestionTypeShort           QuestionType = "SQ"
	QuestionTypeDescriptive     QuestionType = "DESCRIPTIVE"
)

// ParseQuestionType maps a stored type string (any case) onto a known type.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch t := QuestionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case QuestionTypeSingleCorrect, QuestionTypeMultiCorrect, QuestionTypeNumeric,
		QuestionTypeAssertionReason, QuestionTypeMatchFollowing,
		QuestionTypeCreative, QuestionTypeShort, QuestionTypeDescriptive:
		return t, true
	}
	return "", false
}

// IsLongForm reports whether the type is manually graded.
func (t QuestionType) IsLongForm() bool {
	return t == QuestionTypeCreative || t == QuestionTypeShort || t == QuestionTypeDescriptive
}

// Section is the timed part of an exam a question belongs to.
type Section string

const (
	SectionObjective Section = "objective"
	SectionLongForm  Section = "long_form"
)

// Section returns the timed section the type belongs to.
func (t QuestionType) Section() Section {
	if t.IsLongForm() {
		return SectionLongForm
	}
	return SectionObjective
}

// Question is a single question with its type-specific payload. Payload is one of
// the *Spec types below and always matches Type.
type Question struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Marks   float64      `json:"marks"`
	Text    string       `json:"text,omitempty"`
	Payload Payload      `json:"-"`
}

// Payload is implemented only by the spec types in this package.
type Payload interface {
	isPayload()
}

// ChoiceOption is one option of a choice question.
type ChoiceOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// SingleCorrectSpec is the answer key of an MCQ. AcceptedValues holds raw
// correct-value fields used when no option matches.
type SingleCorrectSpec struct {
	Options        []ChoiceOption
	AcceptedValues []string
}

// MultiCorrectSpec is the answer key of a multiple-correct question.
type MultiCorrectSpec struct {
	Options []ChoiceOption
}

// CorrectIndices returns the indices of options flagged correct.
func (s *MultiCorrectSpec) CorrectIndices() []int {
	var out []int
	for i, o := range s.Options {
		if o.IsCorrect {
			out = append(out, i)
		}
	}
	return out
}

// NumericSpec is the answer key of an integer question.
type NumericSpec struct {
	CorrectValue int
	HasKey       bool
}

// Assertion/reason classifications. The numbering is shared with the question
// authoring tools and must not change.
const (
	AssertionBothTrueExplains    = 1
	AssertionBothTrueNotExplains = 2
	AssertionTrueReasonFalse     = 3
	AssertionFalseReasonTrue     = 4
	AssertionBothFalse           = 5
)

// ValidAssertionOption reports whether n is one of the five classifications.
func ValidAssertionOption(n int) bool {
	return n >= AssertionBothTrueExplains && n <= AssertionBothFalse
}

// AssertionReasonSpec is the answer key of an assertion/reason question.
type AssertionReasonSpec struct {
	Assertion     string
	Reason        string
	CorrectOption int
}

// MatchItem is one entry of a match-the-following column.
type MatchItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MatchFollowingSpec pairs left column ids with right column ids.
type MatchFollowingSpec struct {
	Left  []MatchItem
	Right []MatchItem
	Pairs map[string]string
}

// LongFormSpec describes a manually graded question, optionally split into sub-parts.
type LongFormSpec struct {
	SubParts []SubPart
}

// SubPart is one manually graded part of a long-form question.
type SubPart struct {
	Text  string  `json:"text,omitempty"`
	Marks float64 `json:"marks"`
}

func (*SingleCorrectSpec) isPayload()   {}
func (*MultiCorrectSpec) isPayload()    {}
func (*NumericSpec) isPayload()         {}
func (*AssertionReasonSpec) isPayload() {}
func (*MatchFollowingSpec) isPayload()  {}
func (*LongFormSpec) isPayload()        {}
