package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/service"
)

const (
	EvalBatchSize    = 50
	EvalBatchTimeout = 2 * time.Second
	EvalPollTimeout  = 1 * time.Second
	// EvalMaxAttempts bounds how often a failing job is requeued.
	EvalMaxAttempts = 5
)

// Evaluator scores one submission by id.
type Evaluator interface {
	EvaluateByID(ctx context.Context, submissionID uuid.UUID) (service.ScoreBreakdown, error)
}

// AutoReleaser publishes an exam's results once it is due.
type AutoReleaser interface {
	AutoReleaseIfDue(ctx context.Context, examID uuid.UUID) (bool, error)
}

// EvaluationWorker drains the evaluation queue in batches. After a batch it
// gives every touched exam a chance to auto-release.
type EvaluationWorker struct {
	rdb      *redis.Client
	eval     Evaluator
	releaser AutoReleaser
	log      zerolog.Logger
}

// NewEvaluationWorker creates a new EvaluationWorker. releaser may be nil.
func NewEvaluationWorker(rdb *redis.Client, eval Evaluator, releaser AutoReleaser, log zerolog.Logger) *EvaluationWorker {
	return &EvaluationWorker{
		rdb:      rdb,
		eval:     eval,
		releaser: releaser,
		log:      log.With().Str("component", "evaluation_worker").Logger(),
	}
}

type evalJob struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Attempts     int       `json:"attempts"`
}

// Enqueue pushes submissions onto the evaluation queue.
func Enqueue(ctx context.Context, rdb *redis.Client, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	payloads := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		raw, err := json.Marshal(evalJob{SubmissionID: id})
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		payloads = append(payloads, raw)
	}
	if err := rdb.RPush(ctx, config.WorkerKey.EvaluateSubmissionsQueue, payloads...).Err(); err != nil {
		return fmt.Errorf("enqueue evaluations: %w", err)
	}
	return nil
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *EvaluationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EvaluationWorker started")

	batch := make([]*evalJob, 0, EvalBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= EvalBatchSize || time.Since(lastFlush) >= EvalBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, EvalPollTimeout, config.WorkerKey.EvaluateSubmissionsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var j evalJob
			if err := json.Unmarshal([]byte(item[1]), &j); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &j)
		}
	}
}

// ----------------------------------------------------------------
// Batch processing
// ----------------------------------------------------------------

func (w *EvaluationWorker) flushSafe(ctx context.Context, batch []*evalJob) {
	if len(batch) == 0 {
		return
	}

	retry, exams := w.process(ctx, batch)

	for _, j := range retry {
		raw, _ := json.Marshal(j)
		if err := w.rdb.RPush(ctx, config.WorkerKey.EvaluateSubmissionsQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Str("submission_id", j.SubmissionID.String()).Msg("Requeue failed")
		}
	}

	w.releaseTouched(ctx, exams)
}

// process evaluates each distinct submission of the batch once. It returns the
// jobs to retry and the exams whose results changed.
func (w *EvaluationWorker) process(ctx context.Context, batch []*evalJob) ([]*evalJob, []uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(batch))
	touched := make(map[uuid.UUID]bool)
	var (
		retry []*evalJob
		exams []uuid.UUID
	)

	for _, j := range batch {
		if seen[j.SubmissionID] {
			continue
		}
		seen[j.SubmissionID] = true

		b, err := w.eval.EvaluateByID(ctx, j.SubmissionID)
		if err != nil {
			if permanent(err) {
				w.log.Warn().Err(err).Str("submission_id", j.SubmissionID.String()).Msg("Dropping evaluation job")
				continue
			}
			j.Attempts++
			if j.Attempts >= EvalMaxAttempts {
				w.log.Error().Err(err).
					Str("submission_id", j.SubmissionID.String()).
					Int("attempts", j.Attempts).
					Msg("Evaluation failed too often, giving up")
				continue
			}
			w.log.Warn().Err(err).Str("submission_id", j.SubmissionID.String()).Msg("Evaluation failed, requeueing")
			retry = append(retry, j)
			continue
		}

		if !touched[b.ExamID] {
			touched[b.ExamID] = true
			exams = append(exams, b.ExamID)
		}
	}

	w.log.Debug().Int("batch", len(batch)).Int("retry", len(retry)).Msg("Evaluation batch flushed")
	return retry, exams
}

func (w *EvaluationWorker) releaseTouched(ctx context.Context, exams []uuid.UUID) {
	if w.releaser == nil {
		return
	}
	for _, examID := range exams {
		released, err := w.releaser.AutoReleaseIfDue(ctx, examID)
		if err != nil {
			w.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Auto-release check failed")
			continue
		}
		if released {
			w.log.Info().Str("exam_id", examID.String()).Msg("Results auto-released")
		}
	}
}

func permanent(err error) bool {
	return errors.Is(err, service.ErrSubmissionNotFound) ||
		errors.Is(err, service.ErrExamNotFound) ||
		errors.Is(err, service.ErrNoQuestionSet)
}
