package model

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"modl/pkg/common"
	"modl/pkg/stat"
)

func lnF(n int) float64 {
	return stat.LnFactorial(n)
}

func ucl(n int) float64 {
	return stat.NaturalNumbersUniversalCodeLength(n)
}

func logf(x float64) float64 {
	return math.Log(x)
}

func lengthLog(part common.Part) float64 {
	if length := part.UpperBound - part.LowerBound; !math.IsInf(length, 0) {
		return math.Log(length)
	}
	// finite bounds more than MaxFloat64 apart
	return math.Log(part.UpperBound/2-part.LowerBound/2) + stat.Log2
}

func globalCost(m CostModel, parts []common.Part) float64 {
	costs := make([]float64, len(parts))
	for i, part := range parts {
		costs[i] = m.PartCost(part)
	}
	return m.PartitionCost(len(parts)) + floats.Sum(costs)
}

// PartitionDataCost is the likelihood share of PartitionCost.
func PartitionDataCost(m CostModel, k int) float64 {
	return m.PartitionCost(k) - m.PartitionModelCost(k)
}

func PartDataCost(m CostModel, part common.Part) float64 {
	return m.PartCost(part) - m.PartModelCost(part)
}

// GlobalModelCost sums the prior terms of a partition, clamped to zero near zero.
func GlobalModelCost(m CostModel, parts []common.Part) float64 {
	cost := m.PartitionModelCost(len(parts))
	for _, part := range parts {
		cost += m.PartModelCost(part)
	}
	return clampZero(cost)
}

// GlobalDataCost sums the likelihood terms of a partition, clamped to zero near zero.
func GlobalDataCost(m CostModel, parts []common.Part) float64 {
	cost := PartitionDataCost(m, len(parts))
	for _, part := range parts {
		cost += PartDataCost(m, part)
	}
	return clampZero(cost)
}

func clampZero(cost float64) float64 {
	if math.Abs(cost) < Epsilon {
		return 0
	}
	return cost
}
