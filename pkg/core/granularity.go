package core

import (
	"math"

	"modl/pkg/common"
	"modl/pkg/core/bins"
	"modl/pkg/model"
)

const (
	maxSuccessiveDecrease = 2
	minPartileIncrease    = 1.10
)

// LevelTrace records one step of the granularity search.
type LevelTrace struct {
	Level          int     `json:"level"`
	Partiles       int     `json:"partiles"`
	ActualPartiles int     `json:"actual_partiles"`
	Parts          int     `json:"parts"`
	Cost           float64 `json:"cost"`
	Skipped        bool    `json:"skipped"`
}

// Histogram is the best histogram found over all hierarchy levels.
type Histogram struct {
	Partition common.Partition `json:"partition"`
	Level     int              `json:"level"`
	Params    model.Params     `json:"params"`
	NullCost  float64          `json:"null_cost"`
	Trace     []LevelTrace     `json:"trace"`
}

// HistogramParams derives the floating-point coding parameters of a domain.
// base carries the exponent bounds and the fixed-size mode.
func HistogramParams(b *bins.Builder, base model.Params, mantissaBits int) model.Params {
	p := base
	p.InstanceCount = b.TotalFrequency()
	p.MinBinLength = b.MinBinLength()
	p.CentralBinExponent = clampInt(math.Ilogb(b.DomainUpperBound()-b.DomainLowerBound()),
		p.MinCentralBinExponent, p.MaxCentralBinExponent)
	p.HyperParametersCost = boundCost(b.DomainLowerBound()) + boundCost(b.DomainUpperBound()) +
		model.DomainBoundsMantissaCost(mantissaBits)
	return p
}

func boundCost(x float64) float64 {
	sign := 1
	if x < 0 {
		sign = -1
	}
	exponent := 0
	if x != 0 {
		exponent = math.Ilogb(x)
	}
	return model.FloatingPointBinCost(false, sign, exponent)
}

// OptimizeGranularity optimizes a histogram at every hierarchy level and keeps
// the cheapest one. Levels that add less than 10% partiles are skipped, and the
// loop stops early once enough partiles were tried without further improvement.
func OptimizeGranularity(b *bins.Builder, base model.Params, maxParts int) (Histogram, error) {
	n := b.TotalFrequency()
	result := Histogram{Level: -1}
	bestCost := math.Inf(1)
	previousCost := math.Inf(1)
	lastActual := 1
	totalIncrease := 0
	successiveDecrease := 0
	lastDecreaseIndex := 0
	index := 0
	minPartiles := math.Sqrt(float64(n) * (1 + math.Log(1+float64(n))))

	for level := 0; level <= b.MaxLevel(); level++ {
		partiles := b.TotalBinCountAt(level)
		ft, err := b.BuildTable(level)
		if err != nil {
			return result, err
		}

		actual := ft.AtomCount()
		if partiles > 1 && level != b.MaxLevel() && float64(actual) < minPartileIncrease*float64(lastActual) {
			result.Trace = append(result.Trace, LevelTrace{Level: level, Partiles: partiles, ActualPartiles: actual, Skipped: true})
			continue
		}
		lastActual = actual

		p := base
		p.PartileCount = partiles
		p.HierarchyLevel = level
		m, err := model.New(model.Histogram, p)
		if err != nil {
			return result, err
		}
		partition := OptimizedGreedyMerge(m, ft, maxParts)
		cost := partition.Cost
		result.Trace = append(result.Trace, LevelTrace{
			Level: level, Partiles: partiles, ActualPartiles: actual, Parts: partition.K(), Cost: cost,
		})

		if cost < bestCost-model.Epsilon {
			bestCost = cost
			result.Partition = partition
			result.Level = level
			result.Params = p
			if partiles > 1 {
				totalIncrease++
			}
		}

		if index > 0 {
			if cost > previousCost {
				if lastDecreaseIndex == index-1 {
					successiveDecrease++
				} else {
					successiveDecrease = 1
				}
				lastDecreaseIndex = index
			} else {
				successiveDecrease = 0
				lastDecreaseIndex = index + 1
			}
			previousCost = cost

			if float64(partiles) > minPartiles {
				if totalIncrease == 0 && partiles > noPatternPartileLimit(n) {
					break
				}
				if totalIncrease > 0 && successiveDecrease > maxSuccessiveDecrease {
					break
				}
			}
		}
		index++
	}
	return result, nil
}

// noPatternPartileLimit is the partile count past which a search that never
// improved on the single-bin model gives up. It is piecewise linear in n.
func noPatternPartileLimit(n int) int {
	switch {
	case n < 128:
		return n
	case n < 256:
		return 128 + (n-128)/2
	case n < 512:
		return 192 + (n-256)/4
	default:
		return 256 + (n-512)/8
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
