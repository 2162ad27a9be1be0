package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is the derived outcome for one (student, exam).
// IsPublished, Rank and PublishedAt are written only by the release flow.
type Result struct {
	ID            uuid.UUID  `json:"id"`
	StudentID     int        `json:"student_id"`
	ExamID        uuid.UUID  `json:"exam_id"`
	SubmissionID  uuid.UUID  `json:"submission_id"`
	AutoTotal     float64    `json:"auto_total"`
	CreativeTotal float64    `json:"creative_total"`
	ShortTotal    float64    `json:"short_total"`
	Total         float64    `json:"total"`
	Percentage    float64    `json:"percentage"`
	Grade         string     `json:"grade"`
	Rank          *int       `json:"rank,omitempty"`
	IsPublished   bool       `json:"is_published"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// RankUpdate assigns a rank to one result during release.
type RankUpdate struct {
	ResultID uuid.UUID
	Rank     int
}
