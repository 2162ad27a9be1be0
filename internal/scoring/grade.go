package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/stemsi/exstem-results/internal/config"
)

// GradeTable maps a percentage to a letter grade. Bands are held in
// descending threshold order, so the lookup is monotonic non-decreasing.
type GradeTable struct {
	bands []config.GradeBand
}

// NewGradeTable validates and orders bands. Duplicate grades or thresholds are rejected.
func NewGradeTable(bands []config.GradeBand) (*GradeTable, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("grade table has no bands")
	}

	sorted := append([]config.GradeBand(nil), bands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPercent > sorted[j].MinPercent
	})

	grades := make(map[string]struct{}, len(sorted))
	for i, b := range sorted {
		if b.Grade == "" {
			return nil, fmt.Errorf("grade band %d has no grade", i)
		}
		if _, dup := grades[b.Grade]; dup {
			return nil, fmt.Errorf("grade %q appears twice", b.Grade)
		}
		grades[b.Grade] = struct{}{}
		if i > 0 && b.MinPercent == sorted[i-1].MinPercent {
			return nil, fmt.Errorf("grades %q and %q share threshold %v", sorted[i-1].Grade, b.Grade, b.MinPercent)
		}
	}
	return &GradeTable{bands: sorted}, nil
}

// MustGradeTable parses a GRADE_TABLE string and panics on error. Intended for
// defaults and tests.
func MustGradeTable(raw string) *GradeTable {
	bands, err := config.ParseGradeTable(raw)
	if err != nil {
		panic(err)
	}
	t, err := NewGradeTable(bands)
	if err != nil {
		panic(err)
	}
	return t
}

// Grade returns the grade of the highest band whose threshold pct reaches.
// Below every threshold the lowest band's grade is returned.
func (t *GradeTable) Grade(pct float64) string {
	for _, b := range t.bands {
		if pct >= b.MinPercent {
			return b.Grade
		}
	}
	return t.bands[len(t.bands)-1].Grade
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
