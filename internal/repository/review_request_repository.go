package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-results/internal/model"
)

// ReviewRequestRepository handles review request data access.
type ReviewRequestRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRequestRepository creates a new ReviewRequestRepository.
func NewReviewRequestRepository(pool *pgxpool.Pool) *ReviewRequestRepository {
	return &ReviewRequestRepository{pool: pool}
}

// CloseOpenByExam completes every pending or under-review request of an exam.
func (r *ReviewRequestRepository) CloseOpenByExam(ctx context.Context, examID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE review_requests SET status = $1, reviewed_at = $2
		 WHERE exam_id = $3 AND status IN ($4, $5)`,
		model.ReviewStatusCompleted, at, examID,
		model.ReviewStatusPending, model.ReviewStatusUnderReview)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
