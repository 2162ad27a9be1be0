package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-results/internal/model"
)

func objectiveSet() model.QuestionSet {
	return model.QuestionSet{
		Name: "A",
		Questions: []model.Question{
			mcqQuestion("q1", 5, "B", "A", "B", "C", "D"),
			numericQuestion("q2", 5, 42),
		},
	}
}

// endedExam is an objective-only exam whose absolute end passed an hour ago.
func endedExam(env *testEnv) model.Exam {
	return env.addExam(model.Exam{
		Title:               "Chemistry Final",
		TotalMarks:          10,
		ObjectiveTimeBudget: 2 * time.Hour,
		StartsAt:            testNow.Add(-3 * time.Hour),
		EndsAt:              testNow.Add(-time.Hour),
	}, objectiveSet())
}

func TestFinalizeAndReleaseInProgressPastEnd(t *testing.T) {
	env := newTestEnv(t, testNow)
	exam := endedExam(env)

	s1 := env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`, "q2": `42`})
	s2 := env.addSubmission(exam.ID, 2, map[string]string{"q1": `"B"`, "q2": `41`})
	s3 := env.addSubmission(exam.ID, 3, map[string]string{"q1": `"b"`, "q2": `"42"`})

	env.contacts.contacts[exam.ID] = []model.Contact{
		{StudentID: 1, Name: "Ayesha", Email: "ayesha@example.com"},
		{StudentID: 2, Name: "Tanvir", Email: ""},
		{StudentID: 3, Name: "Nusrat", Email: "nusrat@example.com"},
	}
	env.reviews.requests = []model.ReviewRequest{
		{ID: uuid.New(), ExamID: exam.ID, StudentID: 1, Status: model.ReviewStatusPending},
		{ID: uuid.New(), ExamID: exam.ID, StudentID: 2, Status: model.ReviewStatusUnderReview},
		{ID: uuid.New(), ExamID: exam.ID, StudentID: 3, Status: model.ReviewStatusRejected},
		{ID: uuid.New(), ExamID: uuid.New(), StudentID: 3, Status: model.ReviewStatusPending},
	}

	report, err := env.release.FinalizeAndRelease(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("FinalizeAndRelease: %v", err)
	}

	if report.Finalized != 3 || report.AutoSubmitted != 3 || report.Skipped != 0 {
		t.Errorf("report counts = %+v", report)
	}
	for _, id := range []uuid.UUID{s1.ID, s2.ID, s3.ID} {
		sub := env.subs.get(id)
		if sub.Status != model.SectionStatusSubmitted ||
			sub.Objective.Status != model.SectionStatusSubmitted ||
			sub.LongForm.Status != model.SectionStatusSubmitted {
			t.Errorf("submission %s not fully submitted: %+v", id, sub)
		}
		if sub.EvaluatedAt == nil {
			t.Errorf("submission %s not marked evaluated", id)
		}
	}

	wantRanks := map[int]int{1: 1, 3: 1, 2: 3}
	wantTotals := map[int]float64{1: 10, 2: 5, 3: 10}
	for student, rank := range wantRanks {
		r, ok := env.results.get(exam.ID, student)
		if !ok {
			t.Fatalf("no result for student %d", student)
		}
		if !r.IsPublished || r.PublishedAt == nil || !r.PublishedAt.Equal(testNow) {
			t.Errorf("student %d result not published: %+v", student, r)
		}
		if r.Rank == nil || *r.Rank != rank {
			t.Errorf("student %d rank = %v, want %d", student, r.Rank, rank)
		}
		if r.Total != wantTotals[student] {
			t.Errorf("student %d total = %v, want %v", student, r.Total, wantTotals[student])
		}
	}
	if report.Published != 3 {
		t.Errorf("Published = %d, want 3", report.Published)
	}

	if got := env.sender.total(); got != 2 {
		t.Errorf("notification attempts = %d, want 2", got)
	}
	if env.sender.attempts["ayesha@example.com"] != 1 || env.sender.attempts["nusrat@example.com"] != 1 {
		t.Errorf("attempts per address = %v", env.sender.attempts)
	}
	if report.Notified != 2 || len(report.Failures) != 0 {
		t.Errorf("Notified/Failures = %d/%d", report.Notified, len(report.Failures))
	}

	if report.ReviewsClosed != 2 {
		t.Errorf("ReviewsClosed = %d, want 2", report.ReviewsClosed)
	}
	wantStatus := []model.ReviewStatus{
		model.ReviewStatusCompleted,
		model.ReviewStatusCompleted,
		model.ReviewStatusRejected,
		model.ReviewStatusPending,
	}
	for i, r := range env.reviews.requests {
		if r.Status != wantStatus[i] {
			t.Errorf("review %d status = %s, want %s", i, r.Status, wantStatus[i])
		}
	}
}

func TestFinalizeAndReleaseBeforeEndClosesOpenSubmissions(t *testing.T) {
	env := newTestEnv(t, testNow)
	exam := env.addExam(model.Exam{
		TotalMarks:          10,
		ObjectiveTimeBudget: 2 * time.Hour,
		EndsAt:              testNow.Add(2 * time.Hour),
	}, objectiveSet())
	sub := env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})

	report, err := env.release.FinalizeAndRelease(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("FinalizeAndRelease: %v", err)
	}
	if report.AutoSubmitted != 0 || report.Finalized != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := env.subs.get(sub.ID); got.Status != model.SectionStatusSubmitted {
		t.Errorf("explicit release should close the submission, got %s", got.Status)
	}
	if r, _ := env.results.get(exam.ID, 1); r.Total != 5 || !r.IsPublished {
		t.Errorf("result = %+v", r)
	}
}

func TestFinalizeAndReleaseLeavesNotStartedSubmissions(t *testing.T) {
	env := newTestEnv(t, testNow)
	exam := endedExam(env)
	started := env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})
	idle := env.addSubmission(exam.ID, 2, nil)
	idle.Status = model.SectionStatusNotStarted
	idle.Objective = model.SectionState{Status: model.SectionStatusNotStarted}
	env.subs.subs[idle.ID] = idle

	report, err := env.release.FinalizeAndRelease(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("FinalizeAndRelease: %v", err)
	}
	if report.Finalized != 1 {
		t.Errorf("finalized = %d, want 1", report.Finalized)
	}
	if got := env.subs.get(started.ID); got.Status != model.SectionStatusSubmitted {
		t.Errorf("in-progress submission status = %s, want SUBMITTED", got.Status)
	}
	if got := env.subs.get(idle.ID); got.Status != model.SectionStatusNotStarted {
		t.Errorf("not-started submission status = %s, want NOT_STARTED", got.Status)
	}
}

func TestFinalizeAndReleaseNotificationFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t, testNow)
	exam := endedExam(env)
	env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})
	env.addSubmission(exam.ID, 2, map[string]string{"q1": `"A"`})
	env.addSubmission(exam.ID, 3, map[string]string{"q2": `42`})

	env.contacts.contacts[exam.ID] = []model.Contact{
		{StudentID: 1, Email: "one@example.com"},
		{StudentID: 2, Email: "two@example.com"},
		{StudentID: 3, Email: "three@example.com"},
	}
	env.sender.failFor["two@example.com"] = errBoom

	report, err := env.release.FinalizeAndRelease(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("notification failure must not fail the release: %v", err)
	}
	if len(report.Failures) != 1 || report.Failures[0].StudentID != 2 {
		t.Fatalf("Failures = %+v", report.Failures)
	}
	if report.Notified != 2 || env.sender.total() != 3 {
		t.Errorf("Notified = %d, attempts = %d", report.Notified, env.sender.total())
	}
	for _, student := range []int{1, 2, 3} {
		if r, _ := env.results.get(exam.ID, student); !r.IsPublished {
			t.Errorf("student %d result unpublished after notification failure", student)
		}
	}
}

func TestFinalizeAndReleaseIsRepeatable(t *testing.T) {
	env := newTestEnv(t, testNow)
	exam := endedExam(env)
	env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`, "q2": `42`})
	env.addSubmission(exam.ID, 2, map[string]string{"q1": `"B"`})

	ctx := context.Background()
	if _, err := env.release.FinalizeAndRelease(ctx, exam.ID); err != nil {
		t.Fatalf("first release: %v", err)
	}
	first1, _ := env.results.get(exam.ID, 1)
	first2, _ := env.results.get(exam.ID, 2)

	report, err := env.release.FinalizeAndRelease(ctx, exam.ID)
	if err != nil {
		t.Fatalf("second release: %v", err)
	}
	if report.Finalized != 0 {
		t.Errorf("nothing should remain open, finalized %d", report.Finalized)
	}

	second1, _ := env.results.get(exam.ID, 1)
	second2, _ := env.results.get(exam.ID, 2)
	if *first1.Rank != *second1.Rank || *first2.Rank != *second2.Rank {
		t.Errorf("ranks changed between releases")
	}
	if first1.Total != second1.Total || first2.Total != second2.Total {
		t.Errorf("totals changed between releases")
	}
}

func TestFinalizeAndReleaseSkipsUnresolvableSubmission(t *testing.T) {
	env := newTestEnv(t, testNow)
	a := objectiveSet()
	b := objectiveSet()
	b.Name = "B"
	exam := env.addExam(model.Exam{TotalMarks: 10, EndsAt: testNow.Add(-time.Hour)}, a, b)
	sub := env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})

	report, err := env.release.FinalizeAndRelease(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("FinalizeAndRelease: %v", err)
	}
	if report.Skipped != 1 || report.Published != 0 {
		t.Errorf("report = %+v", report)
	}
	if got := env.subs.get(sub.ID); got.Status != model.SectionStatusSubmitted || got.EvaluatedAt != nil {
		t.Errorf("unresolvable submission should be closed but not evaluated: %+v", got)
	}
}

func TestFinalizeAndReleasePersistenceErrorAborts(t *testing.T) {
	env := newTestEnv(t, testNow)
	exam := endedExam(env)
	env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})
	env.results.upsertErr = errBoom

	if _, err := env.release.FinalizeAndRelease(context.Background(), exam.ID); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if env.sender.total() != 0 {
		t.Errorf("no notification should be sent when release fails")
	}
}

func TestFinalizeAndReleaseUnknownExam(t *testing.T) {
	env := newTestEnv(t, testNow)
	if _, err := env.release.FinalizeAndRelease(context.Background(), uuid.New()); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestAutoReleaseIfDue(t *testing.T) {
	ctx := context.Background()

	t.Run("objective-only exam past end", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := endedExam(env)
		env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})

		released, err := env.release.AutoReleaseIfDue(ctx, exam.ID)
		if err != nil || !released {
			t.Fatalf("released=%v err=%v, want release", released, err)
		}
		released, err = env.release.AutoReleaseIfDue(ctx, exam.ID)
		if err != nil || released {
			t.Fatalf("second check released=%v err=%v, want no-op", released, err)
		}
	})

	t.Run("exam with long-form questions", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		set := objectiveSet()
		set.Questions = append(set.Questions, longFormQuestion("c1", model.QuestionTypeCreative, 10))
		exam := env.addExam(model.Exam{TotalMarks: 20, EndsAt: testNow.Add(-time.Hour)}, set)

		if released, err := env.release.AutoReleaseIfDue(ctx, exam.ID); err != nil || released {
			t.Fatalf("released=%v err=%v, want no release", released, err)
		}
	})

	t.Run("explicit zero long-form counts", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		zero := 0
		set := objectiveSet()
		set.Questions = append(set.Questions, longFormQuestion("c1", model.QuestionTypeCreative, 10))
		exam := env.addExam(model.Exam{
			TotalMarks:            10,
			CreativeQuestionCount: &zero,
			ShortQuestionCount:    &zero,
			EndsAt:                testNow.Add(-time.Hour),
		}, set)

		if released, err := env.release.AutoReleaseIfDue(ctx, exam.ID); err != nil || !released {
			t.Fatalf("released=%v err=%v, want release", released, err)
		}
	})

	t.Run("no question sets", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := env.addExam(model.Exam{TotalMarks: 10, EndsAt: testNow.Add(-time.Hour)})
		env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})

		if released, err := env.release.AutoReleaseIfDue(ctx, exam.ID); err != nil || released {
			t.Fatalf("released=%v err=%v, want no release without question sets", released, err)
		}
	})

	t.Run("still running", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := env.addExam(model.Exam{TotalMarks: 10, EndsAt: testNow.Add(time.Hour)}, objectiveSet())
		env.addSubmission(exam.ID, 1, nil)

		if released, err := env.release.AutoReleaseIfDue(ctx, exam.ID); err != nil || released {
			t.Fatalf("released=%v err=%v, want no release", released, err)
		}
	})

	t.Run("all expected candidates submitted", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := env.addExam(model.Exam{TotalMarks: 10, EndsAt: testNow.Add(time.Hour), ExpectedCandidates: 2}, objectiveSet())
		for _, student := range []int{1, 2} {
			sub := env.addSubmission(exam.ID, student, map[string]string{"q1": `"B"`})
			sub = closeSubmission(sub)
			env.subs.subs[sub.ID] = sub
		}

		if released, err := env.release.AutoReleaseIfDue(ctx, exam.ID); err != nil || !released {
			t.Fatalf("released=%v err=%v, want release", released, err)
		}
	})

	t.Run("lock held elsewhere", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		env.release.guard = &fakeGuard{held: true}
		exam := endedExam(env)

		if released, err := env.release.AutoReleaseIfDue(ctx, exam.ID); err != nil || released {
			t.Fatalf("released=%v err=%v, want skip while locked", released, err)
		}
	})

	t.Run("lock unavailable", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		env.release.guard = &fakeGuard{err: errBoom}
		exam := endedExam(env)

		if released, err := env.release.AutoReleaseIfDue(ctx, exam.ID); err != nil || !released {
			t.Fatalf("released=%v err=%v, want release without lock", released, err)
		}
	})
}

func closeSubmission(sub model.Submission) model.Submission {
	done := testNow.Add(-10 * time.Minute)
	sub.Status = model.SectionStatusSubmitted
	sub.SubmittedAt = &done
	sub.Objective.Status = model.SectionStatusSubmitted
	sub.Objective.SubmittedAt = &done
	return sub
}

func TestStudentResult(t *testing.T) {
	ctx := context.Background()

	t.Run("unpublished", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := env.addExam(model.Exam{TotalMarks: 10, EndsAt: testNow.Add(time.Hour)}, objectiveSet())
		sub := env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})
		if _, err := env.eval.EvaluateByID(ctx, sub.ID); err != nil {
			t.Fatalf("EvaluateByID: %v", err)
		}

		if _, err := env.release.StudentResult(ctx, exam.ID, 1); !errors.Is(err, ErrResultNotPublished) {
			t.Fatalf("err = %v, want ErrResultNotPublished", err)
		}
	})

	t.Run("auto-released on view", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := endedExam(env)
		env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`, "q2": `42`})

		r, err := env.release.StudentResult(ctx, exam.ID, 1)
		if err != nil {
			t.Fatalf("StudentResult: %v", err)
		}
		if !r.IsPublished || r.Total != 10 || r.Rank == nil || *r.Rank != 1 {
			t.Errorf("result = %+v", r)
		}
	})

	t.Run("no result", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := env.addExam(model.Exam{TotalMarks: 10, EndsAt: testNow.Add(time.Hour)}, objectiveSet())
		if _, err := env.release.StudentResult(ctx, exam.ID, 42); !errors.Is(err, ErrResultNotFound) {
			t.Fatalf("err = %v, want ErrResultNotFound", err)
		}
	})

	t.Run("unknown exam", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		if _, err := env.release.StudentResult(ctx, uuid.New(), 1); !errors.Is(err, ErrExamNotFound) {
			t.Fatalf("err = %v, want ErrExamNotFound", err)
		}
	})
}

func TestCheckSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("objective budget expired", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := env.addExam(model.Exam{
			TotalMarks:          10,
			ObjectiveTimeBudget: 20 * time.Minute,
			EndsAt:              testNow.Add(2 * time.Hour),
		}, objectiveSet())
		// addSubmission starts the objective section 30 minutes ago.
		sub := env.addSubmission(exam.ID, 1, map[string]string{"q1": `"B"`})

		got, err := env.release.CheckSubmission(ctx, sub.ID)
		if err != nil {
			t.Fatalf("CheckSubmission: %v", err)
		}
		if got.Status != model.SectionStatusSubmitted || got.Objective.Status != model.SectionStatusSubmitted {
			t.Errorf("submission should be auto-submitted: %+v", got)
		}
		if stored := env.subs.get(sub.ID); stored.Status != model.SectionStatusSubmitted {
			t.Errorf("transition not persisted")
		}
		if r, ok := env.results.get(exam.ID, 1); !ok || r.Total != 5 || r.IsPublished {
			t.Errorf("auto-submitted submission should be evaluated, unpublished: %+v", r)
		}
	})

	t.Run("within budget", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		exam := env.addExam(model.Exam{
			TotalMarks:          10,
			ObjectiveTimeBudget: time.Hour,
			EndsAt:              testNow.Add(2 * time.Hour),
		}, objectiveSet())
		sub := env.addSubmission(exam.ID, 1, nil)

		got, err := env.release.CheckStudentSubmission(ctx, exam.ID, 1)
		if err != nil {
			t.Fatalf("CheckStudentSubmission: %v", err)
		}
		if got.Status != model.SectionStatusInProgress || env.subs.updates != 0 {
			t.Errorf("submission %s should stay open without writes", sub.ID)
		}
	})

	t.Run("unknown submission", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		if _, err := env.release.CheckSubmission(ctx, uuid.New()); !errors.Is(err, ErrSubmissionNotFound) {
			t.Fatalf("err = %v, want ErrSubmissionNotFound", err)
		}
	})
}

func TestListResults(t *testing.T) {
	env := newTestEnv(t, testNow)
	exam := env.addExam(model.Exam{TotalMarks: 10}, objectiveSet())

	results, err := env.release.ListResults(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil list, got %v", results)
	}

	if _, err := env.release.ListResults(context.Background(), uuid.New()); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("err = %v, want ErrExamNotFound", err)
	}
}
