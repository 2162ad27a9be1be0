package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/clock"
	"github.com/stemsi/exstem-results/internal/evaluator"
	"github.com/stemsi/exstem-results/internal/metrics"
	"github.com/stemsi/exstem-results/internal/model"
	"github.com/stemsi/exstem-results/internal/scoring"
)

// QuestionScore is the evaluation of one question.
type QuestionScore struct {
	QuestionID string             `json:"question_id"`
	Type       model.QuestionType `json:"type"`
	Marks      float64            `json:"marks"`
	Score      float64            `json:"score"`
	Correct    bool               `json:"correct"`
	Attempted  bool               `json:"attempted"`
	Feedback   string             `json:"feedback"`
}

// ScoreBreakdown is the full evaluation of a submission.
type ScoreBreakdown struct {
	SubmissionID  uuid.UUID `json:"submission_id"`
	StudentID     int       `json:"student_id"`
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionSetID uuid.UUID `json:"question_set_id"`

	AutoTotal     float64 `json:"auto_total"`
	CreativeTotal float64 `json:"creative_total"`
	ShortTotal    float64 `json:"short_total"`
	Total         float64 `json:"total"`
	Percentage    float64 `json:"percentage"`
	Grade         string  `json:"grade"`

	// Long-form questions that received marks, and whether that exceeds the
	// number the exam asks students to answer.
	CreativeAnswered      int  `json:"creative_answered"`
	ShortAnswered         int  `json:"short_answered"`
	ExceededQuestionLimit bool `json:"exceeded_question_limit"`

	Questions []QuestionScore `json:"questions"`
}

// Result converts the breakdown into the persisted result row.
func (b *ScoreBreakdown) Result() *model.Result {
	return &model.Result{
		StudentID:     b.StudentID,
		ExamID:        b.ExamID,
		SubmissionID:  b.SubmissionID,
		AutoTotal:     b.AutoTotal,
		CreativeTotal: b.CreativeTotal,
		ShortTotal:    b.ShortTotal,
		Total:         b.Total,
		Percentage:    b.Percentage,
		Grade:         b.Grade,
	}
}

// EvaluationService scores submissions and persists their results.
type EvaluationService struct {
	exams       ExamProvider
	sets        QuestionSetProvider
	submissions SubmissionStore
	results     ResultStore
	registry    *evaluator.Registry
	grades      *scoring.GradeTable
	clock       clock.Clock
	log         zerolog.Logger
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(
	exams ExamProvider,
	sets QuestionSetProvider,
	submissions SubmissionStore,
	results ResultStore,
	grades *scoring.GradeTable,
	clk clock.Clock,
	log zerolog.Logger,
) *EvaluationService {
	return &EvaluationService{
		exams:       exams,
		sets:        sets,
		submissions: submissions,
		results:     results,
		registry:    evaluator.NewRegistry(),
		grades:      grades,
		clock:       clk,
		log:         log.With().Str("component", "evaluation_service").Logger(),
	}
}

// ResolveQuestionSet picks the set a submission is evaluated against: the
// student's explicit assignment, then the set recorded on the submission, then
// the exam's only set.
func ResolveQuestionSet(sets []model.QuestionSet, assigned *uuid.UUID, sub *model.Submission) (*model.QuestionSet, error) {
	find := func(id uuid.UUID) *model.QuestionSet {
		for i := range sets {
			if sets[i].ID == id {
				return &sets[i]
			}
		}
		return nil
	}

	if assigned != nil {
		if qs := find(*assigned); qs != nil {
			return qs, nil
		}
	}
	if sub.QuestionSetID != nil {
		if qs := find(*sub.QuestionSetID); qs != nil {
			return qs, nil
		}
	}
	if len(sets) == 1 {
		return &sets[0], nil
	}
	return nil, ErrNoQuestionSet
}

// ResolveSet looks up the student's assignment and resolves the submission's set.
func (s *EvaluationService) ResolveSet(ctx context.Context, sub *model.Submission, sets []model.QuestionSet) (*model.QuestionSet, error) {
	assigned, err := s.sets.AssignedSetID(ctx, sub.ExamID, sub.StudentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get assigned set: %w", err)
	}
	return ResolveQuestionSet(sets, assigned, sub)
}

// Score evaluates every question of set against the submission. It has no
// side effects.
func (s *EvaluationService) Score(sub *model.Submission, exam *model.Exam, set *model.QuestionSet) ScoreBreakdown {
	settings := evaluator.Settings{
		NegativePercent: exam.NegativeMarkingPercent,
		PartialMarking:  exam.PartialMarking,
	}

	b := ScoreBreakdown{
		SubmissionID:  sub.ID,
		StudentID:     sub.StudentID,
		ExamID:        sub.ExamID,
		QuestionSetID: set.ID,
		Questions:     make([]QuestionScore, 0, len(set.Questions)),
	}

	var (
		autoTotal float64
		pools     scoring.Pools
	)
	for _, q := range set.Questions {
		in := evaluator.Input{
			Question: q,
			Answer:   sub.Answers[q.ID],
			Settings: settings,
		}
		if m, ok := sub.ManualMarks[q.ID]; ok {
			in.Manual = &m
		}

		out, ok := s.registry.Evaluate(in)
		if !ok {
			s.log.Warn().Str("question_id", q.ID).Str("type", string(q.Type)).Msg("No evaluator for question type")
		}
		if out.AnswerErr != nil {
			s.log.Warn().Err(out.AnswerErr).
				Str("submission_id", sub.ID.String()).
				Str("question_id", q.ID).
				Msg("Malformed answer treated as empty")
		}

		if q.Type.IsLongForm() {
			pools.Add(q.Type, out.Score)
		} else {
			autoTotal += out.Score
		}

		b.Questions = append(b.Questions, QuestionScore{
			QuestionID: q.ID,
			Type:       q.Type,
			Marks:      q.Marks,
			Score:      out.Score,
			Correct:    out.Correct,
			Attempted:  out.Attempted,
			Feedback:   out.Feedback,
		})
	}

	creative, short := pools.Reduce(exam.RequiredCreativeCount, exam.RequiredShortCount)
	b.AutoTotal = round2(autoTotal)
	b.CreativeTotal = round2(creative)
	b.ShortTotal = round2(short)
	b.Total = round2(scoring.GrandTotal(autoTotal, creative, short))
	b.Percentage = scoring.Percentage(b.Total, exam.TotalMarks)
	b.Grade = s.grades.Grade(b.Percentage)

	b.CreativeAnswered, b.ShortAnswered = pools.Attempted()
	b.ExceededQuestionLimit = (exam.RequiredCreativeCount > 0 && b.CreativeAnswered > exam.RequiredCreativeCount) ||
		(exam.RequiredShortCount > 0 && b.ShortAnswered > exam.RequiredShortCount)

	return b
}

// EvaluateSubmission resolves the submission's question set among sets,
// scores it and upserts the result. Running it twice on the same input
// leaves the same result behind. It never publishes.
func (s *EvaluationService) EvaluateSubmission(ctx context.Context, sub *model.Submission, exam *model.Exam, sets []model.QuestionSet) (ScoreBreakdown, error) {
	set, err := s.ResolveSet(ctx, sub, sets)
	if err != nil {
		if errors.Is(err, ErrNoQuestionSet) {
			metrics.Evaluations.WithLabelValues("no_question_set").Inc()
		}
		return ScoreBreakdown{}, err
	}
	return s.evaluateWithSet(ctx, sub, exam, set)
}

func (s *EvaluationService) evaluateWithSet(ctx context.Context, sub *model.Submission, exam *model.Exam, set *model.QuestionSet) (ScoreBreakdown, error) {
	start := time.Now()
	b := s.Score(sub, exam, set)

	result := b.Result()
	if err := s.results.Upsert(ctx, result); err != nil {
		metrics.Evaluations.WithLabelValues("error").Inc()
		return b, fmt.Errorf("upsert result: %w", err)
	}

	metrics.Evaluations.WithLabelValues("ok").Inc()
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	s.log.Debug().
		Str("submission_id", sub.ID.String()).
		Int("student_id", sub.StudentID).
		Float64("total", b.Total).
		Str("grade", b.Grade).
		Msg("Submission evaluated")
	return b, nil
}

// EvaluateByID loads a submission with its exam and question sets and evaluates it.
func (s *EvaluationService) EvaluateByID(ctx context.Context, submissionID uuid.UUID) (ScoreBreakdown, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	exam, sets, err := s.loadExam(ctx, sub.ExamID)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	return s.EvaluateSubmission(ctx, sub, exam, sets)
}

// SaveManualMarks merges grader marks into the submission and re-evaluates it.
// Every question id must be a long-form question of the submission's set.
func (s *EvaluationService) SaveManualMarks(ctx context.Context, submissionID uuid.UUID, req model.ManualMarksRequest) (ScoreBreakdown, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	exam, sets, err := s.loadExam(ctx, sub.ExamID)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	set, err := s.ResolveSet(ctx, sub, sets)
	if err != nil {
		return ScoreBreakdown{}, err
	}

	types := make(map[string]model.QuestionType, len(set.Questions))
	for _, q := range set.Questions {
		types[q.ID] = q.Type
	}

	merged := make(map[string]model.ManualMark, len(sub.ManualMarks)+len(req.Marks))
	for id, m := range sub.ManualMarks {
		merged[id] = m
	}
	for id, in := range req.Marks {
		t, ok := types[id]
		if !ok {
			return ScoreBreakdown{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
		}
		if !t.IsLongForm() {
			return ScoreBreakdown{}, fmt.Errorf("%w: %s", ErrNotLongForm, id)
		}
		merged[id] = model.ManualMark{Marks: in.Marks, Parts: in.Parts}
	}

	if err := s.submissions.SaveManualMarks(ctx, sub.ID, merged); err != nil {
		return ScoreBreakdown{}, fmt.Errorf("save manual marks: %w", err)
	}
	sub.ManualMarks = merged

	return s.evaluateWithSet(ctx, sub, exam, set)
}

func (s *EvaluationService) getSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *EvaluationService) loadExam(ctx context.Context, examID uuid.UUID) (*model.Exam, []model.QuestionSet, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrExamNotFound
		}
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	sets, err := s.sets.ListByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list question sets: %w", err)
	}
	return exam, sets, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
