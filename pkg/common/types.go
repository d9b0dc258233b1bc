package common

import (
	"errors"
	"fmt"
)

// Order 表示频率表中原子的排列方式，在构造时固定
type Order int

const (
	// OrderDescendingFrequency 用于无监督分组：按源频率降序
	OrderDescendingFrequency Order = iota
	// OrderAscendingValue 用于离散化和直方图：按取值升序
	OrderAscendingValue
)

func (o Order) String() string {
	switch o {
	case OrderDescendingFrequency:
		return "descending-frequency"
	case OrderAscendingValue:
		return "ascending-value"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

var (
	ErrEmptyTable        = errors.New("frequency table has no atom")
	ErrNegativeFrequency = errors.New("negative atom frequency")
	ErrUnsortedTable     = errors.New("atoms violate the table ordering")
)

// Atom 是频率表中不可再分的基本单元
type Atom struct {
	Frequency  int     `json:"frequency"`
	LowerBound float64 `json:"lower_bound,omitempty"`
	UpperBound float64 `json:"upper_bound,omitempty"`
}

// Bounded reports whether the atom carries a non-empty interval.
func (a Atom) Bounded() bool {
	return a.UpperBound > a.LowerBound
}

// String 方便调试打印
func (a Atom) String() string {
	if a.Bounded() {
		return fmt.Sprintf("Atom{Freq: %d, ]%g, %g]}", a.Frequency, a.LowerBound, a.UpperBound)
	}
	return fmt.Sprintf("Atom{Freq: %d}", a.Frequency)
}

// FrequencyTable is an immutable, pre-sorted sequence of atoms.
type FrequencyTable struct {
	order Order
	atoms []Atom
	total int
}

// NewFrequencyTable copies atoms into a table after checking the declared ordering.
// The table is never re-sorted.
func NewFrequencyTable(order Order, atoms []Atom) (*FrequencyTable, error) {
	if len(atoms) == 0 {
		return nil, ErrEmptyTable
	}
	ft := &FrequencyTable{order: order, atoms: make([]Atom, len(atoms))}
	copy(ft.atoms, atoms)
	for i, a := range ft.atoms {
		if a.Frequency < 0 {
			return nil, fmt.Errorf("atom %d: %w", i, ErrNegativeFrequency)
		}
		ft.total += a.Frequency
	}

	switch order {
	case OrderDescendingFrequency:
		if !ft.IsSortedDescendingBySourceFrequency() {
			return nil, fmt.Errorf("%s: %w", order, ErrUnsortedTable)
		}
	case OrderAscendingValue:
		if !ft.IsSortedAscendingByValue() {
			return nil, fmt.Errorf("%s: %w", order, ErrUnsortedTable)
		}
	default:
		return nil, fmt.Errorf("unknown order %d", int(order))
	}
	return ft, nil
}

// NewFrequencyTableFromCounts builds a descending-frequency table from plain counts.
func NewFrequencyTableFromCounts(counts []int) (*FrequencyTable, error) {
	atoms := make([]Atom, len(counts))
	for i, c := range counts {
		atoms[i] = Atom{Frequency: c}
	}
	return NewFrequencyTable(OrderDescendingFrequency, atoms)
}

func (ft *FrequencyTable) Order() Order {
	return ft.order
}

func (ft *FrequencyTable) TotalFrequency() int {
	return ft.total
}

func (ft *FrequencyTable) AtomCount() int {
	return len(ft.atoms)
}

func (ft *FrequencyTable) AtomAt(i int) Atom {
	return ft.atoms[i]
}

// Atoms returns a copy of the atoms.
func (ft *FrequencyTable) Atoms() []Atom {
	out := make([]Atom, len(ft.atoms))
	copy(out, ft.atoms)
	return out
}

// RangeFrequency sums the frequencies of atoms in [start, stop).
func (ft *FrequencyTable) RangeFrequency(start, stop int) int {
	sum := 0
	for i := start; i < stop; i++ {
		sum += ft.atoms[i].Frequency
	}
	return sum
}

// IsSortedDescendingBySourceFrequency 只做检查，不负责排序
func (ft *FrequencyTable) IsSortedDescendingBySourceFrequency() bool {
	for i := 1; i < len(ft.atoms); i++ {
		if ft.atoms[i].Frequency > ft.atoms[i-1].Frequency {
			return false
		}
	}
	return true
}

// IsSortedAscendingByValue checks that bounds are non-decreasing and do not overlap.
func (ft *FrequencyTable) IsSortedAscendingByValue() bool {
	for i, a := range ft.atoms {
		if a.UpperBound < a.LowerBound {
			return false
		}
		if i > 0 && a.LowerBound < ft.atoms[i-1].UpperBound {
			return false
		}
	}
	return true
}
