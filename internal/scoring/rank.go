package scoring

import (
	"sort"

	"github.com/stemsi/exstem-results/internal/model"
)

// AssignRanks orders results by total descending and returns one rank per
// result. Equal totals share the rank of their first occurrence, so the next
// lower total skips the whole tie group: [90, 90, 80] ranks [1, 1, 3].
// Ties are listed by student id for a stable order.
func AssignRanks(results []model.Result) []model.RankUpdate {
	sorted := append([]model.Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Total != sorted[j].Total {
			return sorted[i].Total > sorted[j].Total
		}
		return sorted[i].StudentID < sorted[j].StudentID
	})

	updates := make([]model.RankUpdate, len(sorted))
	rank := 0
	for i, r := range sorted {
		if i == 0 || r.Total != sorted[i-1].Total {
			rank = i + 1
		}
		updates[i] = model.RankUpdate{ResultID: r.ID, Rank: rank}
	}
	return updates
}

// IsObjectiveOnly reports whether an exam has no manually graded questions:
// either it is configured with zero creative and short questions, or none of
// its question sets contains a long-form question.
func IsObjectiveOnly(exam *model.Exam, sets []model.QuestionSet) bool {
	if exam != nil && exam.HasExplicitNoLongForm() {
		return true
	}
	if len(sets) == 0 {
		return false
	}
	for i := range sets {
		if sets[i].HasLongForm() {
			return false
		}
	}
	return true
}
