package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-results/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, total_marks, negative_marking_percent, partial_marking,
	objective_question_count, creative_question_count, short_question_count,
	required_creative_count, required_short_count,
	objective_time_minutes, long_form_time_minutes,
	starts_at, ends_at, expected_candidates`

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	var (
		e                       model.Exam
		objMinutes, longMinutes int
		startsAt, endsAt        *time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.TotalMarks, &e.NegativeMarkingPercent, &e.PartialMarking,
		&e.ObjectiveQuestionCount, &e.CreativeQuestionCount, &e.ShortQuestionCount,
		&e.RequiredCreativeCount, &e.RequiredShortCount,
		&objMinutes, &longMinutes,
		&startsAt, &endsAt, &e.ExpectedCandidates)
	if err != nil {
		return nil, err
	}

	e.ObjectiveTimeBudget = time.Duration(objMinutes) * time.Minute
	e.LongFormTimeBudget = time.Duration(longMinutes) * time.Minute
	if startsAt != nil {
		e.StartsAt = *startsAt
	}
	if endsAt != nil {
		e.EndsAt = *endsAt
	}
	return &e, nil
}

// ListEndedUnpublished returns the ids of exams whose end time has passed and
// that have no published result yet. Used by the auto-release sweep.
func (r *ExamRepository) ListEndedUnpublished(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id FROM exams e
		 WHERE e.ends_at IS NOT NULL AND e.ends_at < $1
		   AND NOT EXISTS (
		       SELECT 1 FROM results r WHERE r.exam_id = e.id AND r.is_published
		   )
		 ORDER BY e.ends_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
