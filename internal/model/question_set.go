package model

import "github.com/google/uuid"

// QuestionSet is an ordered list of questions. An exam may carry several sets
// (e.g. set A/B) assigned per student.
type QuestionSet struct {
	ID        uuid.UUID  `json:"id"`
	ExamID    uuid.UUID  `json:"exam_id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// HasLongForm reports whether any question in the set is manually graded.
func (s *QuestionSet) HasLongForm() bool {
	for _, q := range s.Questions {
		if q.Type.IsLongForm() {
			return true
		}
	}
	return false
}

// CountBySection returns how many questions fall into each timed section.
func (s *QuestionSet) CountBySection() (objective, longForm int) {
	for _, q := range s.Questions {
		if q.Type.IsLongForm() {
			longForm++
		} else {
			objective++
		}
	}
	return objective, longForm
}
