package scoring

import (
	"testing"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/model"
)

func TestBestOfN(t *testing.T) {
	tests := []struct {
		name     string
		pool     []float64
		required int
		want     float64
	}{
		{"top two", []float64{10, 7, 5, 3}, 2, 17},
		{"unsorted input", []float64{3, 10, 5, 7}, 2, 17},
		{"required unset", []float64{10, 7, 5, 3}, 0, 25},
		{"required above pool", []float64{4, 1}, 5, 5},
		{"empty pool", nil, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestOfN(tt.pool, tt.required); got != tt.want {
				t.Errorf("BestOfN(%v, %d) = %v, want %v", tt.pool, tt.required, got, tt.want)
			}
		})
	}
}

func TestBestOfNDoesNotReorderInput(t *testing.T) {
	pool := []float64{1, 9, 4}
	BestOfN(pool, 1)
	if pool[0] != 1 || pool[1] != 9 || pool[2] != 4 {
		t.Errorf("input mutated: %v", pool)
	}
}

func TestPools(t *testing.T) {
	var p Pools
	p.Add(model.QuestionTypeCreative, 8)
	p.Add(model.QuestionTypeDescriptive, 6)
	p.Add(model.QuestionTypeCreative, 0)
	p.Add(model.QuestionTypeShort, 2)
	p.Add(model.QuestionTypeShort, 1)
	p.Add(model.QuestionTypeSingleCorrect, 5)

	creative, short := p.Reduce(2, 1)
	if creative != 14 || short != 2 {
		t.Errorf("Reduce = (%v, %v), want (14, 2)", creative, short)
	}

	ac, as := p.Attempted()
	if ac != 2 || as != 2 {
		t.Errorf("Attempted = (%d, %d), want (2, 2)", ac, as)
	}
}

func TestGrandTotalFloorsOnlyAggregate(t *testing.T) {
	if got := GrandTotal(-3.75, 0, 0); got != 0 {
		t.Errorf("negative aggregate = %v, want 0", got)
	}
	if got := GrandTotal(-2, 5, 1); got != 4 {
		t.Errorf("GrandTotal(-2, 5, 1) = %v, want 4", got)
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(45, 60); got != 75 {
		t.Errorf("Percentage(45, 60) = %v", got)
	}
	if got := Percentage(1, 3); got != 33.33 {
		t.Errorf("Percentage(1, 3) = %v", got)
	}
	if got := Percentage(10, 0); got != 0 {
		t.Errorf("Percentage with no total marks = %v", got)
	}
}

func TestGradeTable(t *testing.T) {
	table := MustGradeTable(config.DefaultGradeTable)

	tests := map[float64]string{
		100:   "A+",
		80:    "A+",
		79.99: "A",
		60:    "A-",
		50:    "B",
		40:    "C",
		33:    "D",
		32.99: "F",
		0:     "F",
	}
	for pct, want := range tests {
		if got := table.Grade(pct); got != want {
			t.Errorf("Grade(%v) = %q, want %q", pct, got, want)
		}
	}
}

func TestGradeTableIsMonotonic(t *testing.T) {
	table := MustGradeTable(config.DefaultGradeTable)
	order := map[string]int{"F": 0, "D": 1, "C": 2, "B": 3, "A-": 4, "A": 5, "A+": 6}

	prev := -1
	for pct := 0.0; pct <= 100; pct += 0.5 {
		cur := order[table.Grade(pct)]
		if cur < prev {
			t.Fatalf("grade dropped at %v%%", pct)
		}
		prev = cur
	}
}

func TestNewGradeTableRejectsAmbiguousBands(t *testing.T) {
	cases := [][]config.GradeBand{
		nil,
		{{Grade: "A", MinPercent: 50}, {Grade: "B", MinPercent: 50}},
		{{Grade: "A", MinPercent: 50}, {Grade: "A", MinPercent: 10}},
		{{Grade: "", MinPercent: 50}},
	}
	for i, bands := range cases {
		if _, err := NewGradeTable(bands); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestNewGradeTableSortsBands(t *testing.T) {
	table, err := NewGradeTable([]config.GradeBand{
		{Grade: "Pass", MinPercent: 40},
		{Grade: "Distinction", MinPercent: 75},
		{Grade: "Fail", MinPercent: 0},
	})
	if err != nil {
		t.Fatalf("NewGradeTable: %v", err)
	}
	if got := table.Grade(80); got != "Distinction" {
		t.Errorf("Grade(80) = %q", got)
	}
	if got := table.Grade(41); got != "Pass" {
		t.Errorf("Grade(41) = %q", got)
	}
}

func TestAssignRanks(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	results := []model.Result{
		{ID: ids[0], StudentID: 4, Total: 80},
		{ID: ids[1], StudentID: 2, Total: 90},
		{ID: ids[2], StudentID: 1, Total: 90},
		{ID: ids[3], StudentID: 3, Total: 70},
	}

	updates := AssignRanks(results)
	got := make(map[uuid.UUID]int, len(updates))
	for _, u := range updates {
		got[u.ResultID] = u.Rank
	}

	want := map[uuid.UUID]int{ids[1]: 1, ids[2]: 1, ids[0]: 3, ids[3]: 4}
	for id, rank := range want {
		if got[id] != rank {
			t.Errorf("result %s rank = %d, want %d", id, got[id], rank)
		}
	}

	if updates[0].ResultID != ids[2] {
		t.Errorf("ties should list lower student id first")
	}
}

func TestAssignRanksThreeWay(t *testing.T) {
	results := []model.Result{{Total: 90}, {Total: 90}, {Total: 80}}
	updates := AssignRanks(results)
	ranks := []int{updates[0].Rank, updates[1].Rank, updates[2].Rank}
	if ranks[0] != 1 || ranks[1] != 1 || ranks[2] != 3 {
		t.Errorf("ranks = %v, want [1 1 3]", ranks)
	}
}

func TestIsObjectiveOnly(t *testing.T) {
	zero := 0
	two := 2
	objectiveSet := model.QuestionSet{Questions: []model.Question{{Type: model.QuestionTypeSingleCorrect}}}
	mixedSet := model.QuestionSet{Questions: []model.Question{{Type: model.QuestionTypeNumeric}, {Type: model.QuestionTypeShort}}}

	tests := []struct {
		name string
		exam model.Exam
		sets []model.QuestionSet
		want bool
	}{
		{"explicit zero counts", model.Exam{CreativeQuestionCount: &zero, ShortQuestionCount: &zero}, []model.QuestionSet{mixedSet}, true},
		{"scan finds long form", model.Exam{}, []model.QuestionSet{objectiveSet, mixedSet}, false},
		{"scan finds none", model.Exam{}, []model.QuestionSet{objectiveSet}, true},
		{"partial counts fall back to scan", model.Exam{CreativeQuestionCount: &zero, ShortQuestionCount: &two}, []model.QuestionSet{objectiveSet}, true},
		{"no sets and no counts", model.Exam{}, nil, false},
		{"partial counts without sets", model.Exam{CreativeQuestionCount: &zero}, nil, false},
		{"partial counts with long-form set", model.Exam{CreativeQuestionCount: &zero}, []model.QuestionSet{mixedSet}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsObjectiveOnly(&tt.exam, tt.sets); got != tt.want {
				t.Errorf("IsObjectiveOnly = %v, want %v", got, tt.want)
			}
		})
	}
}
