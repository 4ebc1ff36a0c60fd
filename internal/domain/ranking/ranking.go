// Package ranking orders people by composite score and detects close calls.
package ranking

import (
	"cmp"
	"math"
	"slices"

	"github.com/okian/framerank/internal/domain/model"
)

// TieThreshold is the absolute gap below which the top two scores count as a tie.
const TieThreshold = 3.0

// Rank sorts people by CompositeScore, highest first, and assigns 1-based ranks.
// Equal scores keep their input order. winnerIndex points at the rank-1 person in
// the input slice, which is left untouched. Only ranks 1 and 2 are compared for
// a tie. An empty input yields winnerIndex -1.
func Rank(people []model.Person) (ranked []model.Person, winnerIndex int, isTie bool) {
	if len(people) == 0 {
		return nil, -1, false
	}

	order := make([]int, len(people))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(people[b].CompositeScore, people[a].CompositeScore)
	})

	ranked = make([]model.Person, len(people))
	for pos, idx := range order {
		ranked[pos] = people[idx]
		ranked[pos].Rank = pos + 1
	}

	if len(ranked) >= 2 {
		isTie = math.Abs(ranked[0].CompositeScore-ranked[1].CompositeScore) < TieThreshold
	}
	return ranked, order[0], isTie
}
