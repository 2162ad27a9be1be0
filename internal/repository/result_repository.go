package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-results/internal/model"
)

// ResultRepository handles result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const resultColumns = `id, student_id, exam_id, submission_id, auto_total, creative_total,
	short_total, total, percentage, grade, rank, is_published, published_at`

// Upsert inserts or refreshes the result of a (student, exam). Rank and the
// publish fields are left as they are.
func (r *ResultRepository) Upsert(ctx context.Context, res *model.Result) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO results (student_id, exam_id, submission_id, auto_total, creative_total,
		                      short_total, total, percentage, grade)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (student_id, exam_id) DO UPDATE SET
		     submission_id  = EXCLUDED.submission_id,
		     auto_total     = EXCLUDED.auto_total,
		     creative_total = EXCLUDED.creative_total,
		     short_total    = EXCLUDED.short_total,
		     total          = EXCLUDED.total,
		     percentage     = EXCLUDED.percentage,
		     grade          = EXCLUDED.grade,
		     updated_at     = NOW()
		 RETURNING id, rank, is_published, published_at`,
		res.StudentID, res.ExamID, res.SubmissionID, res.AutoTotal, res.CreativeTotal,
		res.ShortTotal, res.Total, res.Percentage, res.Grade,
	).Scan(&res.ID, &res.Rank, &res.IsPublished, &res.PublishedAt)
}

// ListByExam retrieves every result of an exam, highest total first.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE exam_id = $1
		 ORDER BY total DESC, student_id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		if err := scanResult(rows, &res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetByExamAndStudent retrieves the result of a specific exam-student combination.
func (r *ResultRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Result, error) {
	var res model.Result
	err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID), &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// HasPublished reports whether any result of the exam is published.
func (r *ResultRepository) HasPublished(ctx context.Context, examID uuid.UUID) (bool, error) {
	var published bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE exam_id = $1 AND is_published)`, examID,
	).Scan(&published)
	return published, err
}

// ----------------------------------------------------------------
// Release: bulk rank update using UNNEST, then publish, in one transaction
// ----------------------------------------------------------------

// Publish writes the ranks and marks every result of the exam published at the
// given time. It returns the number of published rows.
func (r *ResultRepository) Publish(ctx context.Context, examID uuid.UUID, ranks []model.RankUpdate, at time.Time) (int64, error) {
	ids := make([]uuid.UUID, len(ranks))
	values := make([]int, len(ranks))
	for i, u := range ranks {
		ids[i] = u.ResultID
		values[i] = u.Rank
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(ranks) > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE results AS r
			SET rank = t.rank, updated_at = NOW()
			FROM (
				SELECT u.id, u.rank
				FROM UNNEST(
					$1::uuid[],
					$2::int[]
				) AS u (id, rank)
			) AS t
			WHERE r.id = t.id AND r.exam_id = $3
		`, ids, values, examID)
		if err != nil {
			return 0, fmt.Errorf("update ranks: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE results SET is_published = TRUE, published_at = $1, updated_at = NOW()
		 WHERE exam_id = $2`, at, examID)
	if err != nil {
		return 0, fmt.Errorf("publish results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit publish tx: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanResult(row rowScanner, res *model.Result) error {
	return row.Scan(&res.ID, &res.StudentID, &res.ExamID, &res.SubmissionID, &res.AutoTotal,
		&res.CreativeTotal, &res.ShortTotal, &res.Total, &res.Percentage, &res.Grade,
		&res.Rank, &res.IsPublished, &res.PublishedAt)
}
