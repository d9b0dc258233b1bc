package core

import (
	"math"

	"modl/pkg/common"
	"modl/pkg/model"
)

// OptimalPartition finds the exact minimum of PartitionGlobalCost over all
// contiguous partitions with at most maxParts parts (maxParts <= 0: unbounded).
// It runs in O(K·N²) part evaluations and is meant for small tables and for
// checking the heuristics.
func OptimalPartition(m model.CostModel, ft *common.FrequencyTable, maxParts int) common.Partition {
	n := ft.AtomCount()
	kMax := n
	if maxParts > 0 && maxParts < kMax {
		kMax = maxParts
	}

	prefix := make([]int, n+1)
	for i := 0; i < n; i++ {
		prefix[i+1] = prefix[i] + ft.AtomAt(i).Frequency
	}
	partCost := func(first, last int) float64 {
		return m.PartCost(common.Part{
			First:      first,
			Last:       last,
			Frequency:  prefix[last+1] - prefix[first],
			LowerBound: ft.AtomAt(first).LowerBound,
			UpperBound: ft.AtomAt(last).UpperBound,
		})
	}

	// cost[k][j]: best sum of part costs covering atoms [0, j) with k parts
	cost := make([][]float64, kMax+1)
	from := make([][]int, kMax+1)
	for k := range cost {
		cost[k] = make([]float64, n+1)
		from[k] = make([]int, n+1)
		for j := range cost[k] {
			cost[k][j] = math.Inf(1)
		}
	}
	cost[0][0] = 0

	for k := 1; k <= kMax; k++ {
		for j := k; j <= n; j++ {
			for i := k - 1; i < j; i++ {
				if math.IsInf(cost[k-1][i], 1) {
					continue
				}
				c := cost[k-1][i] + partCost(i, j-1)
				if c < cost[k][j] {
					cost[k][j] = c
					from[k][j] = i
				}
			}
		}
	}

	bestK := 1
	bestCost := math.Inf(1)
	for k := 1; k <= kMax; k++ {
		total := m.PartitionCost(k) + cost[k][n]
		if total < bestCost-model.Epsilon {
			bestCost = total
			bestK = k
		}
	}

	lasts := make([]int, bestK)
	j := n
	for k := bestK; k >= 1; k-- {
		lasts[k-1] = j - 1
		j = from[k][j]
	}
	p := common.PartitionFromCuts(ft, lasts)
	p.Cost = m.PartitionGlobalCost(p.Parts)
	return p
}
