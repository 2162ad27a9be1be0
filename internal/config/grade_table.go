package config

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultGradeTable is the percentage-to-grade policy used when GRADE_TABLE is unset.
const DefaultGradeTable = "A+:80,A:70,A-:60,B:50,C:40,D:33,F:0"

// GradeBand is one row of the grade policy: a grade awarded at or above MinPercent.
type GradeBand struct {
	Grade      string
	MinPercent float64
}

// ParseGradeTable parses "GRADE:MIN,GRADE:MIN,..." into bands.
// Ordering and monotonicity are enforced by scoring.NewGradeTable.
func ParseGradeTable(raw string) ([]GradeBand, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("grade table is empty")
	}

	parts := strings.Split(raw, ",")
	bands := make([]GradeBand, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx := strings.LastIndex(p, ":")
		if idx <= 0 || idx == len(p)-1 {
			return nil, fmt.Errorf("invalid grade band %q", p)
		}
		grade := strings.TrimSpace(p[:idx])
		minPct, err := strconv.ParseFloat(strings.TrimSpace(p[idx+1:]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid grade band %q: %w", p, err)
		}
		bands = append(bands, GradeBand{Grade: grade, MinPercent: minPct})
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("grade table is empty")
	}
	return bands, nil
}
