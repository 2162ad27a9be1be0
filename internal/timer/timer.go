// Package timer decides when timed exam sections expire. Nothing here runs in
// the background: every read or finalize path calls CheckAndAutoSubmit before
// trusting an IN_PROGRESS state.
package timer

import (
	"time"

	"github.com/stemsi/exstem-results/internal/model"
)

// DefaultGrace absorbs clock skew and late autosaves before a section is closed.
const DefaultGrace = 2 * time.Minute

// Expired reports whether now is past startedAt + budget + grace.
func Expired(startedAt time.Time, budget time.Duration, now time.Time, grace time.Duration) bool {
	return now.After(startedAt.Add(budget).Add(grace))
}

// Sections describes the timed sections that apply to one submission.
type Sections struct {
	ObjectiveBudget    time.Duration
	LongFormBudget     time.Duration
	ObjectiveQuestions int
	LongFormQuestions  int
}

// SectionsFor derives the section layout from the exam budgets and the
// submission's question set. A nil set falls back to the exam's configured counts.
func SectionsFor(exam *model.Exam, set *model.QuestionSet) Sections {
	s := Sections{
		ObjectiveBudget: exam.ObjectiveTimeBudget,
		LongFormBudget:  exam.LongFormTimeBudget,
	}
	if set != nil {
		s.ObjectiveQuestions, s.LongFormQuestions = set.CountBySection()
		return s
	}
	if exam.ObjectiveQuestionCount != nil {
		s.ObjectiveQuestions = *exam.ObjectiveQuestionCount
	}
	if exam.CreativeQuestionCount != nil {
		s.LongFormQuestions += *exam.CreativeQuestionCount
	}
	if exam.ShortQuestionCount != nil {
		s.LongFormQuestions += *exam.ShortQuestionCount
	}
	return s
}

func (s Sections) budget(sec model.Section) time.Duration {
	if sec == model.SectionLongForm {
		return s.LongFormBudget
	}
	return s.ObjectiveBudget
}

// Exempt reports whether a section has neither a time budget nor questions.
// Exempt sections never expire and are not needed to complete a submission.
func (s Sections) Exempt(sec model.Section) bool {
	if sec == model.SectionLongForm {
		return s.LongFormBudget <= 0 && s.LongFormQuestions == 0
	}
	return s.ObjectiveBudget <= 0 && s.ObjectiveQuestions == 0
}

var allSections = []model.Section{model.SectionObjective, model.SectionLongForm}

// CheckAndAutoSubmit applies expiry to a submission and returns the updated
// copy with changed=true when any state moved to SUBMITTED.
//
// Past the exam's absolute end plus grace, every section and the submission
// are closed whatever their budgets say. Otherwise each started section is
// closed once its own budget plus grace has elapsed, and the submission is
// closed once all non-exempt sections are.
func CheckAndAutoSubmit(sub model.Submission, exam *model.Exam, sections Sections, now time.Time, grace time.Duration) (model.Submission, bool) {
	if sub.Status == model.SectionStatusSubmitted {
		return sub, false
	}

	if exam != nil && !exam.EndsAt.IsZero() && Expired(exam.EndsAt, 0, now, grace) {
		return ForceSubmit(sub, now), true
	}

	changed := false
	for _, sec := range allSections {
		if sections.Exempt(sec) {
			continue
		}
		st := sub.Section(sec)
		budget := sections.budget(sec)
		if st.Status != model.SectionStatusInProgress || st.StartedAt == nil || budget <= 0 {
			continue
		}
		if Expired(*st.StartedAt, budget, now, grace) {
			closeSection(st, now)
			changed = true
		}
	}

	if allApplicableSubmitted(&sub, sections) {
		sub.Status = model.SectionStatusSubmitted
		sub.SubmittedAt = timePtr(now)
		changed = true
	}
	return sub, changed
}

// ForceSubmit closes both sections and the submission. Timestamps already set are kept.
func ForceSubmit(sub model.Submission, now time.Time) model.Submission {
	for _, sec := range allSections {
		closeSection(sub.Section(sec), now)
	}
	sub.Status = model.SectionStatusSubmitted
	if sub.SubmittedAt == nil {
		sub.SubmittedAt = timePtr(now)
	}
	return sub
}

func closeSection(st *model.SectionState, now time.Time) {
	st.Status = model.SectionStatusSubmitted
	if st.SubmittedAt == nil {
		st.SubmittedAt = timePtr(now)
	}
}

func allApplicableSubmitted(sub *model.Submission, sections Sections) bool {
	applicable := 0
	for _, sec := range allSections {
		if sections.Exempt(sec) {
			continue
		}
		applicable++
		if sub.Section(sec).Status != model.SectionStatusSubmitted {
			return false
		}
	}
	return applicable > 0
}

func timePtr(t time.Time) *time.Time { return &t }
