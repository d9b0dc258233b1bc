package core

import (
	"fmt"

	"modl/pkg/common"
	"modl/pkg/model"
)

// EscalationThreshold is the retained count under which the excluded remainder is bisected once more.
const EscalationThreshold = 100

// Bisection is the outcome of one bisection level over [Start, Stop).
type Bisection struct {
	Start        int     `json:"start"`
	Stop         int     `json:"stop"`
	StandardCost float64 `json:"standard_cost"`
	BestCost     float64 `json:"best_cost"`
	Cut          int     `json:"cut"` // last atom of the first group, -1 when no cut wins
	Evaluated    int     `json:"evaluated"`
	Retained     int     `json:"retained"`
}

// Grouping is the number of groups chosen by the hierarchical search.
type Grouping struct {
	GroupCount int         `json:"group_count"`
	Retained   int         `json:"retained"`
	Garbage    bool        `json:"garbage"`
	Levels     []Bisection `json:"levels"`
}

// Cuts returns the winning cut indexes, in level order.
func (g Grouping) Cuts() []int {
	var cuts []int
	for _, l := range g.Levels {
		if l.Cut >= 0 {
			cuts = append(cuts, l.Cut)
		}
	}
	return cuts
}

// bisect scans every cut of [start, stop) and keeps the first minimum.
func bisect(ft *common.FrequencyTable, start, stop int) Bisection {
	size := stop - start
	freq := ft.RangeFrequency(start, stop)
	b := Bisection{
		Start:        start,
		Stop:         stop,
		StandardCost: model.StandardCost(freq, size),
		Cut:          -1,
		Retained:     size,
	}
	b.BestCost = b.StandardCost
	if size == 1 {
		return b
	}

	best := 0.0
	bestCut := -1
	firstFreq := 0
	for i := start; i < stop-1; i++ {
		firstFreq += ft.AtomAt(i).Frequency
		firstSize := i - start + 1
		cost := model.HierarchicalCost(firstFreq, firstSize, freq-firstFreq, size-firstSize)
		b.Evaluated++
		if bestCut < 0 || cost < best {
			best = cost
			bestCut = i
		}
	}

	if best < b.StandardCost-model.Epsilon {
		b.BestCost = best
		b.Cut = bestCut
		b.Retained = bestCut - start + 1
	}
	return b
}

// HierarchicalGroupCount chooses the number of groups of a table sorted by
// descending frequency. At most two bisection levels are applied; a garbage
// group is reserved when some atoms are not retained. maxGroups <= 0 means unbounded.
func HierarchicalGroupCount(ft *common.FrequencyTable, maxGroups int) Grouping {
	n := ft.AtomCount()
	if !ft.IsSortedDescendingBySourceFrequency() {
		panic("core: hierarchical grouping requires a table sorted by descending frequency")
	}
	if ft.AtomAt(n-1).Frequency <= 0 {
		panic(fmt.Sprintf("core: hierarchical grouping requires positive frequencies, atom %d has %d", n-1, ft.AtomAt(n-1).Frequency))
	}

	first := bisect(ft, 0, n)
	g := Grouping{Retained: first.Retained, Levels: []Bisection{first}}

	if g.Retained < EscalationThreshold && n-g.Retained > 1 {
		second := bisect(ft, g.Retained, n)
		g.Retained += second.Retained
		g.Levels = append(g.Levels, second)
	}

	g.GroupCount = g.Retained
	if g.GroupCount < n {
		g.GroupCount++
		g.Garbage = true
	}
	if maxGroups > 0 && g.GroupCount > maxGroups {
		g.GroupCount = maxGroups
		g.Garbage = g.GroupCount < n
	}
	return g
}

// GroupPartition materializes groupCount groups: the first groupCount-1 atoms
// each form their own group and the last group absorbs the rest.
func GroupPartition(ft *common.FrequencyTable, groupCount int) common.Partition {
	n := ft.AtomCount()
	if groupCount < 1 || groupCount > n {
		panic(fmt.Sprintf("core: group count %d not in [1, %d]", groupCount, n))
	}
	lasts := make([]int, 0, groupCount)
	for i := 0; i < groupCount-1; i++ {
		lasts = append(lasts, i)
	}
	lasts = append(lasts, n-1)
	return common.PartitionFromCuts(ft, lasts)
}
