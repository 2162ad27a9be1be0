package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/model"
)

// SubmissionRepository handles submission data access. Submissions are created
// by the exam-taking flow; this repository only reads and updates them.
type SubmissionRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool, log zerolog.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		pool: pool,
		log:  log.With().Str("component", "submission_repository").Logger(),
	}
}

const submissionColumns = `id, exam_id, student_id, question_set_id, answers, manual_marks,
	objective_status, objective_started_at, objective_submitted_at,
	long_form_status, long_form_started_at, long_form_submitted_at,
	status, started_at, submitted_at, evaluated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SubmissionRepository) scan(row rowScanner) (*model.Submission, error) {
	var (
		s                  model.Submission
		answers, manualDoc []byte
	)
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.QuestionSetID, &answers, &manualDoc,
		&s.Objective.Status, &s.Objective.StartedAt, &s.Objective.SubmittedAt,
		&s.LongForm.Status, &s.LongForm.StartedAt, &s.LongForm.SubmittedAt,
		&s.Status, &s.StartedAt, &s.SubmittedAt, &s.EvaluatedAt)
	if err != nil {
		return nil, err
	}

	s.Answers = map[string]json.RawMessage{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			r.log.Warn().Err(err).Str("submission_id", s.ID.String()).Msg("Unreadable answers, treating as empty")
			s.Answers = map[string]json.RawMessage{}
		}
	}

	s.ManualMarks = map[string]model.ManualMark{}
	if len(manualDoc) > 0 {
		if err := json.Unmarshal(manualDoc, &s.ManualMarks); err != nil {
			r.log.Warn().Err(err).Str("submission_id", s.ID.String()).Msg("Unreadable manual marks, treating as empty")
			s.ManualMarks = map[string]model.ManualMark{}
		}
	}
	return &s, nil
}

// GetByID retrieves a submission by its UUID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the submission of a specific exam-student combination.
func (r *SubmissionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID))
}

// ListInProgressByExam retrieves every IN_PROGRESS submission of an exam.
// NOT_STARTED rows are left alone.
func (r *SubmissionRepository) ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND status = $2
		 ORDER BY student_id`, examID, model.SectionStatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// CountSubmitted returns how many submissions of an exam are submitted.
func (r *SubmissionRepository) CountSubmitted(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE exam_id = $1 AND status = $2`,
		examID, model.SectionStatusSubmitted,
	).Scan(&n)
	return n, err
}

// UpdateState persists section states, overall status and timestamps.
func (r *SubmissionRepository) UpdateState(ctx context.Context, s *model.Submission) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions SET
		     objective_status = $1, objective_started_at = $2, objective_submitted_at = $3,
		     long_form_status = $4, long_form_started_at = $5, long_form_submitted_at = $6,
		     status = $7, submitted_at = $8, evaluated_at = $9
		 WHERE id = $10`,
		s.Objective.Status, s.Objective.StartedAt, s.Objective.SubmittedAt,
		s.LongForm.Status, s.LongForm.StartedAt, s.LongForm.SubmittedAt,
		s.Status, s.SubmittedAt, s.EvaluatedAt, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s not found", s.ID)
	}
	return nil
}

// SaveManualMarks replaces the grader marks of a submission.
func (r *SubmissionRepository) SaveManualMarks(ctx context.Context, id uuid.UUID, marks map[string]model.ManualMark) error {
	doc, err := json.Marshal(marks)
	if err != nil {
		return fmt.Errorf("marshal manual marks: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE submissions SET manual_marks = $1 WHERE id = $2`, doc, id)
	return err
}

// ListSubmittedIDs returns the ids of every submitted submission of an exam.
// Used to enqueue bulk re-evaluation.
func (r *SubmissionRepository) ListSubmittedIDs(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM submissions WHERE exam_id = $1 AND status = $2 ORDER BY student_id`,
		examID, model.SectionStatusSubmitted)
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
