package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SectionStatus enumerates the states of a timed section and of the submission as a whole.
type SectionStatus string

const (
	SectionStatusNotStarted SectionStatus = "NOT_STARTED"
	SectionStatusInProgress SectionStatus = "IN_PROGRESS"
	SectionStatusSubmitted  SectionStatus = "SUBMITTED"
)

// SectionState tracks one timed section of a submission.
type SectionState struct {
	Status      SectionStatus `json:"status"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
}

// ManualMark is a grader-entered mark for a long-form question. Parts, when
// present, hold one mark per declared sub-part.
type ManualMark struct {
	Marks *float64  `json:"marks,omitempty"`
	Parts []float64 `json:"parts,omitempty"`
}

// Submission is a student's attempt at an exam.
type Submission struct {
	ID            uuid.UUID                  `json:"id"`
	StudentID     int                        `json:"student_id"`
	ExamID        uuid.UUID                  `json:"exam_id"`
	QuestionSetID *uuid.UUID                 `json:"question_set_id,omitempty"`
	Answers       map[string]json.RawMessage `json:"answers"`
	ManualMarks   map[string]ManualMark      `json:"manual_marks"`
	Objective     SectionState               `json:"objective"`
	LongForm      SectionState               `json:"long_form"`
	Status        SectionStatus              `json:"status"`
	StartedAt     time.Time                  `json:"started_at"`
	SubmittedAt   *time.Time                 `json:"submitted_at,omitempty"`
	EvaluatedAt   *time.Time                 `json:"evaluated_at,omitempty"`
}

// Section returns a pointer to the state of the given section.
func (s *Submission) Section(sec Section) *SectionState {
	if sec == SectionLongForm {
		return &s.LongForm
	}
	return &s.Objective
}

// ManualMarksRequest is the payload for recording long-form marks.
type ManualMarksRequest struct {
	Marks map[string]ManualMarkInput `json:"marks" binding:"required,min=1,dive"`
}

// ManualMarkInput is one question's marks within ManualMarksRequest.
type ManualMarkInput struct {
	Marks *float64  `json:"marks" binding:"omitempty,min=0"`
	Parts []float64 `json:"parts" binding:"omitempty,dive,min=0"`
}
