// Package scoring turns per-question scores into totals, grades and ranks.
package scoring

import (
	"sort"

	"github.com/stemsi/exstem-results/internal/model"
)

// BestOfN sums the highest required scores of a pool. required <= 0, or more
// than the pool holds, counts the whole pool.
func BestOfN(scores []float64, required int) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	if required <= 0 || required > len(sorted) {
		required = len(sorted)
	}
	var sum float64
	for _, s := range sorted[:required] {
		sum += s
	}
	return sum
}

// Pools collects manually graded scores for the creative and short-answer
// best-of-N policies. Descriptive questions count towards the creative pool.
type Pools struct {
	Creative []float64
	Short    []float64
}

// Add places a long-form score into its pool. Objective types are ignored.
func (p *Pools) Add(t model.QuestionType, score float64) {
	switch t {
	case model.QuestionTypeCreative, model.QuestionTypeDescriptive:
		p.Creative = append(p.Creative, score)
	case model.QuestionTypeShort:
		p.Short = append(p.Short, score)
	}
}

// Reduce applies the exam's required counts to both pools.
func (p *Pools) Reduce(requiredCreative, requiredShort int) (creative, short float64) {
	return BestOfN(p.Creative, requiredCreative), BestOfN(p.Short, requiredShort)
}

// Attempted counts pool entries that carry marks.
func (p *Pools) Attempted() (creative, short int) {
	for _, s := range p.Creative {
		if s > 0 {
			creative++
		}
	}
	for _, s := range p.Short {
		if s > 0 {
			short++
		}
	}
	return creative, short
}

// GrandTotal floors the combined total at zero. Only the aggregate is floored;
// autoTotal itself may be negative.
func GrandTotal(autoTotal, creative, short float64) float64 {
	total := autoTotal + creative + short
	if total < 0 {
		return 0
	}
	return total
}

// Percentage is total/totalMarks*100, rounded to two decimals. It is 0 when
// the exam has no marks configured.
func Percentage(total, totalMarks float64) float64 {
	if totalMarks <= 0 {
		return 0
	}
	return round2(total / totalMarks * 100)
}
