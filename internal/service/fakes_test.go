package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/clock"
	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/model"
	"github.com/stemsi/exstem-results/internal/notify"
	"github.com/stemsi/exstem-results/internal/scoring"
	"github.com/stemsi/exstem-results/internal/timer"
)

// ----------------------------------------------------------------
// In-memory stores
// ----------------------------------------------------------------

type fakeExams struct {
	mu    sync.Mutex
	exams map[uuid.UUID]model.Exam
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

type fakeSets struct {
	mu       sync.Mutex
	sets     map[uuid.UUID][]model.QuestionSet
	assigned map[string]uuid.UUID
}

func assignKey(examID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%s:%d", examID, studentID)
}

func (f *fakeSets) ListByExam(_ context.Context, examID uuid.UUID) ([]model.QuestionSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.QuestionSet(nil), f.sets[examID]...), nil
}

func (f *fakeSets) AssignedSetID(_ context.Context, examID uuid.UUID, studentID int) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.assigned[assignKey(examID, studentID)]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

type fakeSubmissions struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]model.Submission
	updates int
}

func (f *fakeSubmissions) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &s, nil
}

func (f *fakeSubmissions) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.ExamID == examID && s.StudentID == studentID {
			return &s, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSubmissions) ListInProgressByExam(_ context.Context, examID uuid.UUID) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for _, s := range f.subs {
		if s.ExamID == examID && s.Status == model.SectionStatusInProgress {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissions) CountSubmitted(_ context.Context, examID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.ExamID == examID && s.Status == model.SectionStatusSubmitted {
			n++
		}
	}
	return n, nil
}

func (f *fakeSubmissions) UpdateState(_ context.Context, sub *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.ID] = *sub
	f.updates++
	return nil
}

func (f *fakeSubmissions) SaveManualMarks(_ context.Context, id uuid.UUID, marks map[string]model.ManualMark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.ManualMarks = marks
	f.subs[id] = s
	return nil
}

func (f *fakeSubmissions) get(id uuid.UUID) model.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[id]
}

type fakeResults struct {
	mu        sync.Mutex
	results   map[string]model.Result
	upserts   int
	upsertErr error
}

func (f *fakeResults) Upsert(_ context.Context, r *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	key := assignKey(r.ExamID, r.StudentID)
	if existing, ok := f.results[key]; ok {
		r.ID = existing.ID
		r.Rank = existing.Rank
		r.IsPublished = existing.IsPublished
		r.PublishedAt = existing.PublishedAt
	} else {
		r.ID = uuid.New()
	}
	f.results[key] = *r
	f.upserts++
	return nil
}

func (f *fakeResults) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Result
	for _, r := range f.results {
		if r.ExamID == examID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResults) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[assignKey(examID, studentID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &r, nil
}

func (f *fakeResults) HasPublished(_ context.Context, examID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.results {
		if r.ExamID == examID && r.IsPublished {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeResults) Publish(_ context.Context, examID uuid.UUID, ranks []model.RankUpdate, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rankOf := make(map[uuid.UUID]int, len(ranks))
	for _, r := range ranks {
		rankOf[r.ResultID] = r.Rank
	}
	var n int64
	for k, r := range f.results {
		if r.ExamID != examID {
			continue
		}
		if rank, ok := rankOf[r.ID]; ok {
			rank := rank
			r.Rank = &rank
		}
		r.IsPublished = true
		r.PublishedAt = &at
		f.results[k] = r
		n++
	}
	return n, nil
}

func (f *fakeResults) get(examID uuid.UUID, studentID int) (model.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[assignKey(examID, studentID)]
	return r, ok
}

type fakeReviews struct {
	mu       sync.Mutex
	requests []model.ReviewRequest
}

func (f *fakeReviews) CloseOpenByExam(_ context.Context, examID uuid.UUID, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.requests {
		r := &f.requests[i]
		if r.ExamID == examID && r.IsOpen() {
			r.Status = model.ReviewStatusCompleted
			r.ReviewedAt = &at
			n++
		}
	}
	return n, nil
}

type fakeContacts struct {
	contacts map[uuid.UUID][]model.Contact
}

func (f *fakeContacts) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Contact, error) {
	return f.contacts[examID], nil
}

type fakeSender struct {
	mu       sync.Mutex
	attempts map[string]int
	failFor  map[string]error
}

func (f *fakeSender) Send(_ context.Context, address string, _ notify.ResultNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[address]++
	return f.failFor[address]
}

func (f *fakeSender) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.attempts {
		n += c
	}
	return n
}

type fakeGuard struct {
	held bool
	err  error
}

func (g *fakeGuard) TryLock(context.Context, uuid.UUID) (func(), bool, error) {
	if g.err != nil {
		return nil, false, g.err
	}
	if g.held {
		return nil, false, nil
	}
	g.held = true
	return func() { g.held = false }, true, nil
}

// ----------------------------------------------------------------
// Test environment
// ----------------------------------------------------------------

var testNow = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	exams    *fakeExams
	sets     *fakeSets
	subs     *fakeSubmissions
	results  *fakeResults
	reviews  *fakeReviews
	contacts *fakeContacts
	sender   *fakeSender

	eval    *EvaluationService
	release *ReleaseService
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	env := &testEnv{
		exams:    &fakeExams{exams: map[uuid.UUID]model.Exam{}},
		sets:     &fakeSets{sets: map[uuid.UUID][]model.QuestionSet{}, assigned: map[string]uuid.UUID{}},
		subs:     &fakeSubmissions{subs: map[uuid.UUID]model.Submission{}},
		results:  &fakeResults{results: map[string]model.Result{}},
		reviews:  &fakeReviews{},
		contacts: &fakeContacts{contacts: map[uuid.UUID][]model.Contact{}},
		sender:   &fakeSender{attempts: map[string]int{}, failFor: map[string]error{}},
	}

	clk := clock.Fixed(now)
	grades := scoring.MustGradeTable(config.DefaultGradeTable)
	env.eval = NewEvaluationService(env.exams, env.sets, env.subs, env.results, grades, clk, zerolog.Nop())
	env.release = NewReleaseService(ReleaseDeps{
		Submissions:       env.subs,
		Results:           env.results,
		Reviews:           env.reviews,
		Contacts:          env.contacts,
		Sender:            env.sender,
		Evaluation:        env.eval,
		Clock:             clk,
		Grace:             timer.DefaultGrace,
		NotifyConcurrency: 4,
	}, zerolog.Nop())
	return env
}

func (e *testEnv) addExam(exam model.Exam, sets ...model.QuestionSet) model.Exam {
	if exam.ID == uuid.Nil {
		exam.ID = uuid.New()
	}
	e.exams.exams[exam.ID] = exam
	for i := range sets {
		sets[i].ExamID = exam.ID
		if sets[i].ID == uuid.Nil {
			sets[i].ID = uuid.New()
		}
	}
	e.sets.sets[exam.ID] = sets
	return exam
}

func (e *testEnv) addSubmission(examID uuid.UUID, studentID int, answers map[string]string) model.Submission {
	started := testNow.Add(-30 * time.Minute)
	sub := model.Submission{
		ID:        uuid.New(),
		StudentID: studentID,
		ExamID:    examID,
		Answers:   rawAnswers(answers),
		Objective: model.SectionState{Status: model.SectionStatusInProgress, StartedAt: &started},
		LongForm:  model.SectionState{Status: model.SectionStatusNotStarted},
		Status:    model.SectionStatusInProgress,
		StartedAt: started,
	}
	e.subs.subs[sub.ID] = sub
	return sub
}

func rawAnswers(in map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = json.RawMessage(v)
	}
	return out
}

// ----------------------------------------------------------------
// Question builders
// ----------------------------------------------------------------

func mcqQuestion(id string, marks float64, correct string, options ...string) model.Question {
	spec := &model.SingleCorrectSpec{}
	for _, o := range options {
		spec.Options = append(spec.Options, model.ChoiceOption{Text: o, IsCorrect: o == correct})
	}
	return model.Question{ID: id, Type: model.QuestionTypeSingleCorrect, Marks: marks, Payload: spec}
}

func multiQuestion(id string, marks float64, n int, correct ...int) model.Question {
	spec := &model.MultiCorrectSpec{Options: make([]model.ChoiceOption, n)}
	for _, i := range correct {
		spec.Options[i].IsCorrect = true
	}
	return model.Question{ID: id, Type: model.QuestionTypeMultiCorrect, Marks: marks, Payload: spec}
}

func numericQuestion(id string, marks float64, value int) model.Question {
	return model.Question{ID: id, Type: model.QuestionTypeNumeric, Marks: marks, Payload: &model.NumericSpec{CorrectValue: value, HasKey: true}}
}

func arQuestion(id string, marks float64, correct int) model.Question {
	return model.Question{ID: id, Type: model.QuestionTypeAssertionReason, Marks: marks, Payload: &model.AssertionReasonSpec{CorrectOption: correct}}
}

func mtfQuestion(id string, marks float64, pairs map[string]string) model.Question {
	spec := &model.MatchFollowingSpec{Pairs: pairs}
	for l, r := range pairs {
		spec.Left = append(spec.Left, model.MatchItem{ID: l})
		spec.Right = append(spec.Right, model.MatchItem{ID: r})
	}
	return model.Question{ID: id, Type: model.QuestionTypeMatchFollowing, Marks: marks, Payload: spec}
}

func longFormQuestion(id string, t model.QuestionType, marks float64) model.Question {
	return model.Question{ID: id, Type: t, Marks: marks, Payload: &model.LongFormSpec{}}
}

func markOf(v float64) model.ManualMark {
	return model.ManualMark{Marks: &v}
}

var errBoom = errors.New("boom")
