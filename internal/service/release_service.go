package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stemsi/exstem-results/internal/clock"
	"github.com/stemsi/exstem-results/internal/metrics"
	"github.com/stemsi/exstem-results/internal/model"
	"github.com/stemsi/exstem-results/internal/notify"
	"github.com/stemsi/exstem-results/internal/scoring"
	"github.com/stemsi/exstem-results/internal/timer"
)

const defaultNotifyConcurrency = 16

// ReleaseDeps are the collaborators of ReleaseService. Exams and question sets
// are read through Evaluation. Guard is optional.
type ReleaseDeps struct {
	Submissions SubmissionStore
	Results     ResultStore
	Reviews     ReviewCloser
	Contacts    ContactDirectory
	Sender      notify.Sender
	Evaluation  *EvaluationService
	Guard       ReleaseGuard
	Clock       clock.Clock

	Grace             time.Duration
	NotifyConcurrency int
}

// NotificationFailure records one recipient whose notification could not be sent.
type NotificationFailure struct {
	StudentID int    `json:"student_id"`
	Address   string `json:"address"`
	Error     string `json:"error"`
}

// ReleaseReport summarises one FinalizeAndRelease run.
type ReleaseReport struct {
	ExamID        uuid.UUID             `json:"exam_id"`
	Finalized     int                   `json:"finalized"`
	AutoSubmitted int                   `json:"auto_submitted"`
	Skipped       int                   `json:"skipped"`
	ReviewsClosed int64                 `json:"reviews_closed"`
	Published     int64                 `json:"published"`
	Notified      int                   `json:"notified"`
	Failures      []NotificationFailure `json:"failures,omitempty"`
	ReleasedAt    time.Time             `json:"released_at"`
}

// ReleaseService closes open submissions, ranks and publishes results and
// notifies students.
type ReleaseService struct {
	submissions SubmissionStore
	results     ResultStore
	reviews     ReviewCloser
	contacts    ContactDirectory
	sender      notify.Sender
	evaluation  *EvaluationService
	guard       ReleaseGuard
	clock       clock.Clock
	grace       time.Duration
	concurrency int
	log         zerolog.Logger
}

// NewReleaseService creates a new ReleaseService.
func NewReleaseService(deps ReleaseDeps, log zerolog.Logger) *ReleaseService {
	concurrency := deps.NotifyConcurrency
	if concurrency <= 0 {
		concurrency = defaultNotifyConcurrency
	}
	return &ReleaseService{
		submissions: deps.Submissions,
		results:     deps.Results,
		reviews:     deps.Reviews,
		contacts:    deps.Contacts,
		sender:      deps.Sender,
		evaluation:  deps.Evaluation,
		guard:       deps.Guard,
		clock:       deps.Clock,
		grace:       deps.Grace,
		concurrency: concurrency,
		log:         log.With().Str("component", "release_service").Logger(),
	}
}

// ----------------------------------------------------------------
// Read-path expiry check
// ----------------------------------------------------------------

// CheckSubmission applies the expiry check to a submission and persists any
// transition. A submission that becomes SUBMITTED is evaluated.
func (s *ReleaseService) CheckSubmission(ctx context.Context, submissionID uuid.UUID) (model.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Submission{}, ErrSubmissionNotFound
		}
		return model.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return s.check(ctx, sub)
}

// CheckStudentSubmission is CheckSubmission addressed by exam and student.
func (s *ReleaseService) CheckStudentSubmission(ctx context.Context, examID uuid.UUID, studentID int) (model.Submission, error) {
	sub, err := s.submissions.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Submission{}, ErrSubmissionNotFound
		}
		return model.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return s.check(ctx, sub)
}

func (s *ReleaseService) check(ctx context.Context, sub *model.Submission) (model.Submission, error) {
	if sub.Status == model.SectionStatusSubmitted {
		return *sub, nil
	}

	exam, sets, err := s.loadExam(ctx, sub.ExamID)
	if err != nil {
		return model.Submission{}, err
	}
	set, err := s.evaluation.ResolveSet(ctx, sub, sets)
	if err != nil && !errors.Is(err, ErrNoQuestionSet) {
		return model.Submission{}, err
	}

	now := s.clock.Now()
	updated, changed := timer.CheckAndAutoSubmit(*sub, exam, timer.SectionsFor(exam, set), now, s.grace)
	if !changed {
		return updated, nil
	}
	metrics.AutoSubmits.WithLabelValues(s.expiryReason(exam, now)).Inc()

	if updated.Status == model.SectionStatusSubmitted && set != nil {
		if _, err := s.evaluation.evaluateWithSet(ctx, &updated, exam, set); err != nil {
			return model.Submission{}, err
		}
		updated.EvaluatedAt = &now
	}
	if err := s.submissions.UpdateState(ctx, &updated); err != nil {
		return model.Submission{}, fmt.Errorf("update submission: %w", err)
	}

	s.log.Info().
		Str("submission_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Msg("Submission auto-submitted")
	return updated, nil
}

func (s *ReleaseService) expiryReason(exam *model.Exam, now time.Time) string {
	if !exam.EndsAt.IsZero() && timer.Expired(exam.EndsAt, 0, now, s.grace) {
		return "exam_end"
	}
	return "section_budget"
}

// ----------------------------------------------------------------
// Release
// ----------------------------------------------------------------

// FinalizeAndRelease stops an exam: every open submission is expiry-checked,
// re-evaluated and closed, open review requests are completed, results are
// ranked and published, and each student with an address is notified.
//
// Re-running it on a released exam republishes identical ranks. Notification
// failures are reported, never returned.
func (s *ReleaseService) FinalizeAndRelease(ctx context.Context, examID uuid.UUID) (ReleaseReport, error) {
	return s.release(ctx, examID, "manual")
}

func (s *ReleaseService) release(ctx context.Context, examID uuid.UUID, trigger string) (ReleaseReport, error) {
	now := s.clock.Now()
	report := ReleaseReport{ExamID: examID, ReleasedAt: now}

	exam, sets, err := s.loadExam(ctx, examID)
	if err != nil {
		return report, err
	}

	if err := s.finalizeOpen(ctx, exam, sets, now, &report); err != nil {
		return report, err
	}

	closed, err := s.reviews.CloseOpenByExam(ctx, examID, now)
	if err != nil {
		return report, fmt.Errorf("close review requests: %w", err)
	}
	report.ReviewsClosed = closed

	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		return report, fmt.Errorf("list results: %w", err)
	}
	ranks := scoring.AssignRanks(results)
	published, err := s.results.Publish(ctx, examID, ranks, now)
	if err != nil {
		return report, fmt.Errorf("publish results: %w", err)
	}
	report.Published = published
	metrics.Releases.WithLabelValues(trigger).Inc()

	rankOf := make(map[uuid.UUID]int, len(ranks))
	for _, r := range ranks {
		rankOf[r.ResultID] = r.Rank
	}
	s.notifyAll(ctx, exam, results, rankOf, now, &report)

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("trigger", trigger).
		Int("finalized", report.Finalized).
		Int("skipped", report.Skipped).
		Int64("published", report.Published).
		Int("notified", report.Notified).
		Int("notify_failures", len(report.Failures)).
		Msg("Exam results released")
	return report, nil
}

// finalizeOpen closes every in-progress submission of the exam. Evaluations
// run concurrently; the first persistence error aborts the release.
func (s *ReleaseService) finalizeOpen(ctx context.Context, exam *model.Exam, sets []model.QuestionSet, now time.Time, report *ReleaseReport) error {
	open, err := s.submissions.ListInProgressByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list open submissions: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range open {
		sub := open[i]
		g.Go(func() error {
			autoSubmitted, skipped, err := s.finalizeOne(gctx, &sub, exam, sets, now)
			if err != nil {
				return fmt.Errorf("finalize submission %s: %w", sub.ID, err)
			}
			mu.Lock()
			report.Finalized++
			if autoSubmitted {
				report.AutoSubmitted++
			}
			if skipped {
				report.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (s *ReleaseService) finalizeOne(ctx context.Context, sub *model.Submission, exam *model.Exam, sets []model.QuestionSet, now time.Time) (autoSubmitted, skipped bool, err error) {
	set, err := s.evaluation.ResolveSet(ctx, sub, sets)
	if err != nil && !errors.Is(err, ErrNoQuestionSet) {
		return false, false, err
	}

	updated, autoSubmitted := timer.CheckAndAutoSubmit(*sub, exam, timer.SectionsFor(exam, set), now, s.grace)
	if autoSubmitted {
		metrics.AutoSubmits.WithLabelValues(s.expiryReason(exam, now)).Inc()
	}

	if set == nil {
		metrics.Evaluations.WithLabelValues("no_question_set").Inc()
		s.log.Warn().
			Str("submission_id", sub.ID.String()).
			Int("student_id", sub.StudentID).
			Msg("No question set for submission, closing without evaluation")
		skipped = true
	} else {
		if _, err := s.evaluation.evaluateWithSet(ctx, &updated, exam, set); err != nil {
			return autoSubmitted, false, err
		}
		updated.EvaluatedAt = &now
	}

	updated = timer.ForceSubmit(updated, now)
	if err := s.submissions.UpdateState(ctx, &updated); err != nil {
		return autoSubmitted, skipped, fmt.Errorf("update submission: %w", err)
	}
	return autoSubmitted, skipped, nil
}

// notifyAll sends every notification concurrently and records each failure.
// No failure stops the other sends.
func (s *ReleaseService) notifyAll(ctx context.Context, exam *model.Exam, results []model.Result, rankOf map[uuid.UUID]int, now time.Time, report *ReleaseReport) {
	contacts, err := s.contacts.ListByExam(ctx, exam.ID)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to load contacts, notifications skipped")
		return
	}
	byStudent := make(map[int]model.Contact, len(contacts))
	for _, c := range contacts {
		byStudent[c.StudentID] = c
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, r := range results {
		contact, ok := byStudent[r.StudentID]
		if !ok || contact.Email == "" {
			continue
		}

		n := notify.ResultNotification{
			StudentID:   r.StudentID,
			StudentName: contact.Name,
			ExamID:      exam.ID,
			ExamTitle:   exam.Title,
			Total:       r.Total,
			TotalMarks:  exam.TotalMarks,
			Percentage:  r.Percentage,
			Grade:       r.Grade,
			Rank:        rankOf[r.ID],
			PublishedAt: now,
		}
		address := contact.Email

		g.Go(func() error {
			err := s.sender.Send(ctx, address, n)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.Notifications.WithLabelValues("failed").Inc()
				s.log.Warn().Err(err).Int("student_id", n.StudentID).Str("address", address).Msg("Result notification failed")
				report.Failures = append(report.Failures, NotificationFailure{
					StudentID: n.StudentID,
					Address:   address,
					Error:     err.Error(),
				})
				return nil
			}
			metrics.Notifications.WithLabelValues("sent").Inc()
			report.Notified++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].StudentID < report.Failures[j].StudentID
	})
}

// ----------------------------------------------------------------
// Opportunistic release
// ----------------------------------------------------------------

// AutoReleaseIfDue releases an objective-only exam that has no published
// result yet once it has ended, or once every expected candidate has
// submitted. It reports whether a release ran.
//
// The "nothing published yet" check plus the optional guard make this a
// best-effort single flight; a duplicate run is harmless.
func (s *ReleaseService) AutoReleaseIfDue(ctx context.Context, examID uuid.UUID) (bool, error) {
	exam, sets, err := s.loadExam(ctx, examID)
	if err != nil {
		return false, err
	}
	if !scoring.IsObjectiveOnly(exam, sets) {
		return false, nil
	}

	published, err := s.results.HasPublished(ctx, examID)
	if err != nil {
		return false, fmt.Errorf("check published: %w", err)
	}
	if published {
		return false, nil
	}

	due, err := s.releaseDue(ctx, exam)
	if err != nil || !due {
		return false, err
	}

	if s.guard != nil {
		unlock, acquired, err := s.guard.TryLock(ctx, examID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Release lock unavailable, releasing without it")
		case !acquired:
			return false, nil
		default:
			defer unlock()
		}
	}

	if _, err := s.release(ctx, examID, "auto"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ReleaseService) releaseDue(ctx context.Context, exam *model.Exam) (bool, error) {
	if !exam.EndsAt.IsZero() && s.clock.Now().After(exam.EndsAt) {
		return true, nil
	}
	if exam.ExpectedCandidates <= 0 {
		return false, nil
	}
	submitted, err := s.submissions.CountSubmitted(ctx, exam.ID)
	if err != nil {
		return false, fmt.Errorf("count submitted: %w", err)
	}
	return submitted >= exam.ExpectedCandidates, nil
}

// ----------------------------------------------------------------
// Result reads
// ----------------------------------------------------------------

// StudentResult returns a student's published result, releasing the exam
// first when it is due.
func (s *ReleaseService) StudentResult(ctx context.Context, examID uuid.UUID, studentID int) (model.Result, error) {
	if _, err := s.AutoReleaseIfDue(ctx, examID); err != nil {
		if errors.Is(err, ErrExamNotFound) {
			return model.Result{}, err
		}
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Auto-release check failed")
	}

	r, err := s.results.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Result{}, ErrResultNotFound
		}
		return model.Result{}, fmt.Errorf("get result: %w", err)
	}
	if !r.IsPublished {
		return model.Result{}, ErrResultNotPublished
	}
	return *r, nil
}

// ListResults returns every result of an exam, published or not.
func (s *ReleaseService) ListResults(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	if _, _, err := s.loadExam(ctx, examID); err != nil {
		return nil, err
	}
	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.Result{}
	}
	return results, nil
}

func (s *ReleaseService) loadExam(ctx context.Context, examID uuid.UUID) (*model.Exam, []model.QuestionSet, error) {
	return s.evaluation.loadExam(ctx, examID)
}
