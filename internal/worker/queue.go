package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SubmittedLister lists the submitted submissions of an exam.
type SubmittedLister interface {
	ListSubmittedIDs(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error)
}

// ExamQueue enqueues whole exams for re-evaluation by EvaluationWorker.
type ExamQueue struct {
	rdb    *redis.Client
	lister SubmittedLister
}

// NewExamQueue creates a new ExamQueue.
func NewExamQueue(rdb *redis.Client, lister SubmittedLister) *ExamQueue {
	return &ExamQueue{rdb: rdb, lister: lister}
}

// EnqueueExam queues every submitted submission of the exam and returns how many.
func (q *ExamQueue) EnqueueExam(ctx context.Context, examID uuid.UUID) (int, error) {
	ids, err := q.lister.ListSubmittedIDs(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("list submitted: %w", err)
	}
	if err := Enqueue(ctx, q.rdb, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}
