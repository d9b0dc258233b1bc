// Package bins turns raw numeric values into the elementary equal-width
// frequency tables searched by the histogram granularity loop.
package bins

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"modl/pkg/common"
)

// MaxSafeLevel bounds the number of elementary bins to 2^MaxSafeLevel.
const MaxSafeLevel = 24

var (
	ErrNoValue       = errors.New("no value to bin")
	ErrDomainTooWide = errors.New("domain too wide")
)

// Builder holds the sorted values of one variable and its domain.
type Builder struct {
	values   []float64
	lower    float64
	upper    float64
	maxLevel int
}

// NewBuilder copies and sorts values. maxLevel is capped by MaxSafeLevel.
func NewBuilder(values []float64, maxLevel int) (*Builder, error) {
	if len(values) == 0 {
		return nil, ErrNoValue
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %d is not finite: %g", i, v)
		}
	}
	if maxLevel < 0 {
		return nil, fmt.Errorf("negative max hierarchy level %d", maxLevel)
	}
	if maxLevel > MaxSafeLevel {
		maxLevel = MaxSafeLevel
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	b := &Builder{
		values:   sorted,
		lower:    floats.Min(sorted),
		upper:    floats.Max(sorted),
		maxLevel: maxLevel,
	}
	// a single distinct value still needs a domain of positive length
	if b.upper == b.lower {
		b.lower -= 0.5
		b.upper += 0.5
	}
	if maxLevel == 0 && math.IsInf(b.upper-b.lower, 0) {
		return nil, fmt.Errorf("domain [%g, %g] is too wide for a single bin: %w", b.lower, b.upper, ErrDomainTooWide)
	}
	return b, nil
}

func (b *Builder) TotalFrequency() int {
	return len(b.values)
}

func (b *Builder) MaxLevel() int {
	return b.maxLevel
}

func (b *Builder) DomainLowerBound() float64 {
	return b.lower
}

func (b *Builder) DomainUpperBound() float64 {
	return b.upper
}

// TotalBinCountAt is the number of elementary bins at level.
func (b *Builder) TotalBinCountAt(level int) int {
	return 1 << level
}

// MinBinLength is the width of an elementary bin at the deepest level.
func (b *Builder) MinBinLength() float64 {
	return b.binWidth(b.TotalBinCountAt(b.maxLevel))
}

// binWidth splits the domain into count bins. The domain of finite values may
// itself be wider than MaxFloat64.
func (b *Builder) binWidth(count int) float64 {
	n := float64(count)
	if w := (b.upper - b.lower) / n; !math.IsInf(w, 0) {
		return w
	}
	return b.upper/n - b.lower/n
}

// binIndex is the bin ]lower+i*width, lower+(i+1)*width] holding v, clamped to [0, count).
func (b *Builder) binIndex(v, width float64, count int) int {
	if count == 1 {
		return 0
	}
	offset := (v - b.lower) / width
	if math.IsInf(offset, 0) {
		offset = v/width - b.lower/width
	}
	idx := int(math.Ceil(offset)) - 1
	if idx < 0 {
		return 0
	}
	if idx >= count {
		return count - 1
	}
	return idx
}

// BuildTable bins the values into 2^level equal-width bins ]lo, hi] (the first
// bin also holds the domain lower bound). Runs of empty bins are coalesced
// into a single zero-frequency atom, so the table never has more atoms than
// twice the number of values plus one.
func (b *Builder) BuildTable(level int) (*common.FrequencyTable, error) {
	if level < 0 || level > b.maxLevel {
		return nil, fmt.Errorf("level %d not in [0, %d]", level, b.maxLevel)
	}
	count := b.TotalBinCountAt(level)
	width := b.binWidth(count)
	bound := func(i int) float64 {
		switch {
		case i == 0:
			return b.lower
		case i == count:
			return b.upper
		}
		if step := float64(i) * width; !math.IsInf(step, 0) {
			return b.lower + step
		}
		half := float64(i) * (width / 2)
		return b.lower + half + half
	}

	var atoms []common.Atom
	next := 0 // first bin not yet covered by an atom
	for i := 0; i < len(b.values); {
		idx := b.binIndex(b.values[i], width, count)
		if idx < next {
			idx = next - 1
		}
		j := i + 1
		for j < len(b.values) && b.binIndex(b.values[j], width, count) <= idx {
			j++
		}
		if idx == next-1 {
			atoms[len(atoms)-1].Frequency += j - i
			i = j
			continue
		}
		if idx > next {
			atoms = append(atoms, common.Atom{LowerBound: bound(next), UpperBound: bound(idx)})
		}
		atoms = append(atoms, common.Atom{Frequency: j - i, LowerBound: bound(idx), UpperBound: bound(idx + 1)})
		next = idx + 1
		i = j
	}
	if next < count {
		atoms = append(atoms, common.Atom{LowerBound: bound(next), UpperBound: b.upper})
	}
	return common.NewFrequencyTable(common.OrderAscendingValue, atoms)
}
