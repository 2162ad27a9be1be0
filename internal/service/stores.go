package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-results/internal/model"
)

// Lookups that find nothing return pgx.ErrNoRows; the services translate it
// into their own sentinel errors.

// ExamProvider loads exam settings.
type ExamProvider interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// QuestionSetProvider loads an exam's question sets and per-student assignments.
type QuestionSetProvider interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.QuestionSet, error)
	// AssignedSetID returns nil when the student has no explicit assignment.
	AssignedSetID(ctx context.Context, examID uuid.UUID, studentID int) (*uuid.UUID, error)
}

// SubmissionStore reads and updates submissions. It never creates or deletes them.
type SubmissionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, error)
	ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error)
	CountSubmitted(ctx context.Context, examID uuid.UUID) (int, error)
	// UpdateState persists section states, overall status and timestamps.
	UpdateState(ctx context.Context, sub *model.Submission) error
	SaveManualMarks(ctx context.Context, id uuid.UUID, marks map[string]model.ManualMark) error
}

// ResultStore persists results. Upsert is keyed by (student, exam) and never
// touches rank or publish fields.
type ResultStore interface {
	Upsert(ctx context.Context, r *model.Result) error
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error)
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Result, error)
	HasPublished(ctx context.Context, examID uuid.UUID) (bool, error)
	Publish(ctx context.Context, examID uuid.UUID, ranks []model.RankUpdate, at time.Time) (int64, error)
}

// ReviewCloser completes open review requests of an exam.
type ReviewCloser interface {
	CloseOpenByExam(ctx context.Context, examID uuid.UUID, at time.Time) (int64, error)
}

// ContactDirectory resolves where each student of an exam is notified.
type ContactDirectory interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Contact, error)
}

// ReleaseGuard is a best-effort lock around opportunistic releases.
type ReleaseGuard interface {
	TryLock(ctx context.Context, examID uuid.UUID) (unlock func(), acquired bool, err error)
}
