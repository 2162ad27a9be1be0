package model

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus enumerates the states of a result review request.
type ReviewStatus string

const (
	ReviewStatusPending     ReviewStatus = "PENDING"
	ReviewStatusUnderReview ReviewStatus = "UNDER_REVIEW"
	ReviewStatusCompleted   ReviewStatus = "COMPLETED"
	ReviewStatusRejected    ReviewStatus = "REJECTED"
)

// ReviewRequest is a student's request to have a result re-checked.
type ReviewRequest struct {
	ID         uuid.UUID    `json:"id"`
	ExamID     uuid.UUID    `json:"exam_id"`
	StudentID  int          `json:"student_id"`
	Status     ReviewStatus `json:"status"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
}

// IsOpen reports whether the request still awaits a reviewer.
func (r *ReviewRequest) IsOpen() bool {
	return r.Status == ReviewStatusPending || r.Status == ReviewStatusUnderReview
}
