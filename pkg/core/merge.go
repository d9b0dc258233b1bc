package core

import (
	"math"

	"modl/pkg/common"
	"modl/pkg/core/queue"
	"modl/pkg/model"
)

const queueDegree = 32

// mergeState is a doubly linked list of parts indexed by their first atom.
type mergeState struct {
	m     model.CostModel
	parts []common.Part
	costs []float64
	delta []float64
	next  []int
	prev  []int
	q     *queue.Queue
	k     int
}

func newMergeState(m model.CostModel, ft *common.FrequencyTable) *mergeState {
	n := ft.AtomCount()
	s := &mergeState{
		m:     m,
		parts: make([]common.Part, n),
		costs: make([]float64, n),
		delta: make([]float64, n),
		next:  make([]int, n),
		prev:  make([]int, n),
		q:     queue.New(queueDegree),
		k:     n,
	}
	for i := 0; i < n; i++ {
		s.parts[i] = common.MergePart(ft, i, i)
		s.costs[i] = m.PartCost(s.parts[i])
		s.next[i] = i + 1
		s.prev[i] = i - 1
	}
	s.next[n-1] = -1
	for i := 0; i < n-1; i++ {
		s.push(i)
	}
	return s
}

// push evaluates merging the part at left with its right neighbour.
func (s *mergeState) push(left int) {
	right := s.next[left]
	merged := common.Merge(s.parts[left], s.parts[right])
	s.delta[left] = s.m.PartCost(merged) - s.costs[left] - s.costs[right]
	s.q.Put(queue.Item{Delta: s.delta[left], Left: left})
}

func (s *mergeState) drop(left int) {
	if left >= 0 && s.next[left] >= 0 {
		s.q.Delete(queue.Item{Delta: s.delta[left], Left: left})
	}
}

// best returns the best candidate and its total delta for the current part count.
func (s *mergeState) best() (queue.Item, float64, bool) {
	item, ok := s.q.Min()
	if !ok {
		return item, 0, false
	}
	d := s.m.PartitionDeltaCost(s.k) + item.Delta
	if math.Abs(d) < model.Epsilon {
		d = 0
	}
	return item, d, true
}

func (s *mergeState) merge(left int) {
	right := s.next[left]
	s.drop(s.prev[left])
	s.drop(left)
	s.drop(right)

	s.parts[left] = common.Merge(s.parts[left], s.parts[right])
	s.costs[left] = s.m.PartCost(s.parts[left])
	s.next[left] = s.next[right]
	if s.next[left] >= 0 {
		s.prev[s.next[left]] = left
	}
	s.k--

	if s.prev[left] >= 0 {
		s.push(s.prev[left])
	}
	if s.next[left] >= 0 {
		s.push(left)
	}
}

func (s *mergeState) lasts() []int {
	lasts := make([]int, 0, s.k)
	for i := 0; i >= 0; i = s.next[i] {
		lasts = append(lasts, s.parts[i].Last)
	}
	return lasts
}

// GreedyMerge starts from one part per atom and merges the best adjacent pair
// while the cost does not increase or the part count exceeds maxParts.
// maxParts <= 0 means unbounded.
func GreedyMerge(m model.CostModel, ft *common.FrequencyTable, maxParts int) common.Partition {
	s := newMergeState(m, ft)
	for s.k > 1 {
		item, d, ok := s.best()
		if !ok {
			break
		}
		if d > 0 && (maxParts <= 0 || s.k <= maxParts) {
			break
		}
		s.merge(item.Left)
	}
	p := common.PartitionFromCuts(ft, s.lasts())
	p.Cost = m.PartitionGlobalCost(p.Parts)
	return p
}

// OptimizedGreedyMerge merges down to a single part and returns the best
// partition met on the way, restricted to at most maxParts parts when maxParts > 0.
func OptimizedGreedyMerge(m model.CostModel, ft *common.FrequencyTable, maxParts int) common.Partition {
	s := newMergeState(m, ft)
	cost := m.PartitionGlobalCost(common.SingletonPartition(ft).Parts)

	var bestLasts []int
	bestCost := math.Inf(1)
	if maxParts <= 0 || s.k <= maxParts {
		bestLasts = s.lasts()
		bestCost = cost
	}
	for s.k > 1 {
		item, d, ok := s.best()
		if !ok {
			break
		}
		s.merge(item.Left)
		cost += d
		if (maxParts <= 0 || s.k <= maxParts) && (bestLasts == nil || cost < bestCost-model.Epsilon) {
			bestCost = cost
			bestLasts = s.lasts()
		}
	}
	p := common.PartitionFromCuts(ft, bestLasts)
	p.Cost = m.PartitionGlobalCost(p.Parts)
	return p
}
