package common

import (
	"errors"
	"fmt"
)

var ErrInvalidPartition = errors.New("partition does not cover the table")

// Part is a contiguous run of atoms [First, Last] merged together.
type Part struct {
	First      int     `json:"first"`
	Last       int     `json:"last"`
	Frequency  int     `json:"frequency"`
	LowerBound float64 `json:"lower_bound,omitempty"`
	UpperBound float64 `json:"upper_bound,omitempty"`
}

// Size is the number of atoms in the part.
func (p Part) Size() int {
	return p.Last - p.First + 1
}

func (p Part) Bounded() bool {
	return p.UpperBound > p.LowerBound
}

// MergePart aggregates atoms [first, last] of the table.
func MergePart(ft *FrequencyTable, first, last int) Part {
	p := Part{
		First:      first,
		Last:       last,
		Frequency:  ft.RangeFrequency(first, last+1),
		LowerBound: ft.atoms[first].LowerBound,
		UpperBound: ft.atoms[last].UpperBound,
	}
	return p
}

// Merge joins two adjacent parts.
func Merge(left, right Part) Part {
	return Part{
		First:      left.First,
		Last:       right.Last,
		Frequency:  left.Frequency + right.Frequency,
		LowerBound: left.LowerBound,
		UpperBound: right.UpperBound,
	}
}

// Partition is the ordered result of a search. It is a value and is never mutated after it is returned.
type Partition struct {
	Parts []Part  `json:"parts"`
	Cost  float64 `json:"cost"`
}

// PartitionFromCuts builds the partition whose parts end at the given atom indexes.
// The last cut must be the last atom of the table.
func PartitionFromCuts(ft *FrequencyTable, lasts []int) Partition {
	parts := make([]Part, 0, len(lasts))
	first := 0
	for _, last := range lasts {
		parts = append(parts, MergePart(ft, first, last))
		first = last + 1
	}
	return Partition{Parts: parts}
}

// SingletonPartition puts every atom in its own part.
func SingletonPartition(ft *FrequencyTable) Partition {
	lasts := make([]int, ft.AtomCount())
	for i := range lasts {
		lasts[i] = i
	}
	return PartitionFromCuts(ft, lasts)
}

func (p Partition) K() int {
	return len(p.Parts)
}

func (p Partition) TotalFrequency() int {
	sum := 0
	for _, part := range p.Parts {
		sum += part.Frequency
	}
	return sum
}

// Cuts returns the last atom index of every part but the final one.
func (p Partition) Cuts() []int {
	if len(p.Parts) <= 1 {
		return nil
	}
	cuts := make([]int, 0, len(p.Parts)-1)
	for _, part := range p.Parts[:len(p.Parts)-1] {
		cuts = append(cuts, part.Last)
	}
	return cuts
}

// Validate checks that the parts cover the table in order with no gap or overlap.
func (p Partition) Validate(ft *FrequencyTable) error {
	if len(p.Parts) == 0 {
		return fmt.Errorf("empty partition: %w", ErrInvalidPartition)
	}
	next := 0
	for i, part := range p.Parts {
		if part.First != next || part.Last < part.First {
			return fmt.Errorf("part %d [%d, %d]: %w", i, part.First, part.Last, ErrInvalidPartition)
		}
		if part.Frequency != ft.RangeFrequency(part.First, part.Last+1) {
			return fmt.Errorf("part %d frequency %d: %w", i, part.Frequency, ErrInvalidPartition)
		}
		next = part.Last + 1
	}
	if next != ft.AtomCount() {
		return fmt.Errorf("covers %d of %d atoms: %w", next, ft.AtomCount(), ErrInvalidPartition)
	}
	if p.TotalFrequency() != ft.TotalFrequency() {
		return fmt.Errorf("total frequency %d != %d: %w", p.TotalFrequency(), ft.TotalFrequency(), ErrInvalidPartition)
	}
	return nil
}
