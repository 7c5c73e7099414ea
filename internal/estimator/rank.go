package estimator

import (
	"cmp"
	"slices"
)

// RankMin assigns min-tie ranks (1-based). Tied values share the lowest
// ordinal of their group and the next distinct value skips ahead by the group
// size. Rows with valid[i] == false get rank 0 and ok[i] == false. A nil
// valid slice treats every value as present.
func RankMin(values []float64, valid []bool, descending bool) (ranks []int64, ok []bool) {
	n := len(values)
	ranks = make([]int64, n)
	ok = make([]bool, n)

	idx := make([]int, 0, n)
	for i := range values {
		if valid == nil || valid[i] {
			idx = append(idx, i)
			ok[i] = true
		}
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if descending {
			return cmp.Compare(values[b], values[a])
		}
		return cmp.Compare(values[a], values[b])
	})

	for pos, i := range idx {
		if pos > 0 && values[i] == values[idx[pos-1]] {
			ranks[i] = ranks[idx[pos-1]]
			continue
		}
		ranks[i] = int64(pos + 1)
	}
	return ranks, ok
}

// RankMinGroups ranks values within each group of row indices.
func RankMinGroups(values []float64, valid []bool, groups [][]int, descending bool) (ranks []int64, ok []bool) {
	ranks = make([]int64, len(values))
	ok = make([]bool, len(values))
	for _, rows := range groups {
		sub := make([]float64, len(rows))
		var subValid []bool
		if valid != nil {
			subValid = make([]bool, len(rows))
		}
		for j, r := range rows {
			sub[j] = values[r]
			if valid != nil {
				subValid[j] = valid[r]
			}
		}
		rk, rok := RankMin(sub, subValid, descending)
		for j, r := range rows {
			ranks[r], ok[r] = rk[j], rok[j]
		}
	}
	return ranks, ok
}
