package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam carries the evaluation-relevant settings of an exam.
type Exam struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`

	TotalMarks             float64 `json:"total_marks"`
	NegativeMarkingPercent float64 `json:"negative_marking_percent"`
	PartialMarking         bool    `json:"partial_marking"`

	// Configured question totals. A nil count means "not configured", which is
	// distinct from an explicit zero when deciding whether an exam is objective-only.
	ObjectiveQuestionCount *int `json:"objective_question_count,omitempty"`
	CreativeQuestionCount  *int `json:"creative_question_count,omitempty"`
	ShortQuestionCount     *int `json:"short_question_count,omitempty"`

	// Best-of-N policy: how many long-form answers count. Zero means all of them.
	RequiredCreativeCount int `json:"required_creative_count"`
	RequiredShortCount    int `json:"required_short_count"`

	ObjectiveTimeBudget time.Duration `json:"objective_time_budget"`
	LongFormTimeBudget  time.Duration `json:"long_form_time_budget"`

	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	// ExpectedCandidates is the roster size. When positive, an objective-only
	// exam may be auto-released as soon as that many submissions are in.
	ExpectedCandidates int `json:"expected_candidates"`
}

// HasExplicitNoLongForm reports whether the exam is configured with zero creative
// and zero short questions.
func (e *Exam) HasExplicitNoLongForm() bool {
	return e.CreativeQuestionCount != nil && *e.CreativeQuestionCount == 0 &&
		e.ShortQuestionCount != nil && *e.ShortQuestionCount == 0
}
