package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/combin"

	"modl/pkg/common"
	"modl/pkg/stat"
)

func scenarioTable(t *testing.T) *common.FrequencyTable {
	t.Helper()
	ft, err := common.NewFrequencyTableFromCounts([]int{50, 30, 10, 5, 5})
	require.NoError(t, err)
	return ft
}

func histogramParams() Params {
	return Params{
		InstanceCount:         1000,
		PartileCount:          64,
		HyperParametersCost:   1.5,
		HierarchyLevel:        6,
		MinBinLength:          0.125,
		CentralBinExponent:    2,
		MinCentralBinExponent: -4,
		MaxCentralBinExponent: 8,
	}
}

func TestStandardCostScenario(t *testing.T) {
	want := stat.LnFactorial(104) - stat.LnFactorial(100) - stat.LnFactorial(4)
	assert.Equal(t, want, StandardCost(100, 5))
	assert.InDelta(t, combin.LogGeneralizedBinomial(104, 4), StandardCost(100, 5), 1e-9)
	assert.Equal(t, 0.0, StandardCost(7, 1))
}

func TestStandardCostPreconditions(t *testing.T) {
	assert.Panics(t, func() { StandardCost(0, 3) })
	assert.Panics(t, func() { StandardCost(3, 0) })
}

func TestHierarchicalCost(t *testing.T) {
	got := HierarchicalCost(50, 1, 50, 4)
	want := math.Log(5.0/2.0) + math.Log(101) +
		stat.LnFactorial(5) - stat.LnFactorial(1) - stat.LnFactorial(4) +
		StandardCost(50, 1) + StandardCost(50, 4)
	assert.InDelta(t, want, got, 1e-12)

	// symmetric in its two groups
	assert.InDelta(t, HierarchicalCost(30, 2, 70, 3), HierarchicalCost(70, 3, 30, 2), 1e-12)
}

func TestNewValidatesParams(t *testing.T) {
	_, err := New(Multinomial, Params{InstanceCount: 10, PartileCount: 0})
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = New(Multinomial, Params{InstanceCount: -1, PartileCount: 3})
	assert.True(t, errors.Is(err, ErrInvalidParams))

	p := histogramParams()
	p.MinBinLength = 0
	_, err = New(Histogram, p)
	assert.True(t, errors.Is(err, ErrInvalidParams))

	p = histogramParams()
	p.CentralBinExponent = 9
	_, err = New(Histogram, p)
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = New(Kind(7), Params{InstanceCount: 1, PartileCount: 1})
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = New(Histogram, histogramParams())
	assert.NoError(t, err)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Multinomial, Hierarchical, Histogram} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("bell")
	assert.Error(t, err)
}

func TestMultinomialPartitionCostTerms(t *testing.T) {
	ft := scenarioTable(t)
	m := MustNew(Multinomial, ParamsForTable(ft, Params{HyperParametersCost: 0.5}))

	k := 3
	want := 0.5 + stat.NaturalNumbersUniversalCodeLength(k) +
		stat.LnFactorial(5+k-1) - stat.LnFactorial(5) - stat.LnFactorial(k-1) +
		stat.LnFactorial(100+k-1) - stat.LnFactorial(100) - stat.LnFactorial(k-1) +
		stat.LnFactorial(100)
	assert.InDelta(t, want, m.PartitionCost(k), 1e-9)

	h := MustNew(Hierarchical, ParamsForTable(ft, Params{HyperParametersCost: 0.5, HierarchyLevel: 2}))
	assert.InDelta(t, want+stat.NaturalNumbersUniversalCodeLength(3), h.PartitionCost(k), 1e-9)
}

func TestPartitionCostRejectsOutOfRangeK(t *testing.T) {
	ft := scenarioTable(t)
	m := MustNew(Multinomial, ParamsForTable(ft, Params{}))
	assert.Panics(t, func() { m.PartitionCost(0) })
	assert.Panics(t, func() { m.PartitionCost(6) })
	assert.Panics(t, func() { m.PartitionDeltaCost(1) })

	hm := MustNew(Histogram, histogramParams())
	assert.Panics(t, func() { hm.PartitionCost(65) })
}

func TestDeltaCostConsistency(t *testing.T) {
	models := []Model{
		MustNew(Multinomial, Params{InstanceCount: 100, PartileCount: 5}),
		MustNew(Hierarchical, Params{InstanceCount: 100, PartileCount: 5, HierarchyLevel: 1}),
		MustNew(Histogram, histogramParams()),
	}
	for _, m := range models {
		for k := 2; k <= m.Params().PartileCount; k++ {
			require.Equal(t, m.PartitionCost(k-1)-m.PartitionCost(k), m.PartitionDeltaCost(k), "%s k=%d", m.Kind(), k)
		}
	}
}

func TestGlobalCostDecomposition(t *testing.T) {
	ft := scenarioTable(t)
	m := MustNew(Multinomial, ParamsForTable(ft, Params{}))
	for _, cuts := range [][]int{{4}, {0, 4}, {0, 1, 4}, {0, 1, 2, 3, 4}} {
		p := common.PartitionFromCuts(ft, cuts)
		want := m.PartitionCost(p.K())
		for _, part := range p.Parts {
			want += m.PartCost(part)
		}
		assert.InDelta(t, want, m.PartitionGlobalCost(p.Parts), 1e-9)
		assert.InDelta(t, m.PartitionGlobalCost(p.Parts),
			GlobalModelCost(m, p.Parts)+GlobalDataCost(m, p.Parts), 1e-9)
	}
}

func TestCostsAreDeterministic(t *testing.T) {
	ft := scenarioTable(t)
	m := MustNew(Hierarchical, ParamsForTable(ft, Params{HierarchyLevel: 3}))
	p := common.PartitionFromCuts(ft, []int{0, 2, 4})
	first := m.PartitionGlobalCost(p.Parts)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, m.PartitionGlobalCost(p.Parts))
	}
}

func TestHistogramPartCost(t *testing.T) {
	m := MustNew(Histogram, histogramParams())
	part := common.Part{Frequency: 12, LowerBound: 1, UpperBound: 1.5}
	assert.InDelta(t, -stat.LnFactorial(12)+12*math.Log(0.5), m.PartCost(part), 1e-12)

	degenerate := common.Part{Frequency: 12, LowerBound: 2, UpperBound: 2}
	assert.Equal(t, -stat.LnFactorial(12), m.PartCost(degenerate))

	wide := common.Part{Frequency: 12, LowerBound: -1e308, UpperBound: 1e308}
	assert.InDelta(t, -stat.LnFactorial(12)+12*(math.Log(1e308)+math.Log(2)), m.PartCost(wide), 1e-9)

	// categorical models ignore bounds
	g := MustNew(Multinomial, Params{InstanceCount: 12, PartileCount: 1})
	assert.Equal(t, -stat.LnFactorial(12), g.PartCost(part))
}

func TestHistogramPartitionCostTerms(t *testing.T) {
	p := histogramParams()
	m := MustNew(Histogram, p)
	k := 5
	want := p.HyperParametersCost +
		stat.NaturalNumbersUniversalCodeLength(1+p.MaxCentralBinExponent-p.CentralBinExponent) +
		stat.NaturalNumbersUniversalCodeLength(1+p.HierarchyLevel) +
		stat.NaturalNumbersUniversalCodeLength(k) +
		stat.LnFactorial(p.PartileCount+k-1) - stat.LnFactorial(p.PartileCount) - stat.LnFactorial(k-1) +
		stat.LnFactorial(p.InstanceCount+k-1) - stat.LnFactorial(p.InstanceCount) - stat.LnFactorial(k-1) +
		stat.LnFactorial(p.InstanceCount) -
		float64(p.InstanceCount)*math.Log(p.MinBinLength)
	assert.InDelta(t, want, m.PartitionCost(k), 1e-9)

	modelCost := want - stat.LnFactorial(p.InstanceCount) + float64(p.InstanceCount)*math.Log(p.MinBinLength)
	assert.InDelta(t, modelCost, m.PartitionModelCost(k), 1e-9)
	assert.Equal(t, 0.0, m.PartModelCost(common.Part{Frequency: 3, LowerBound: 0, UpperBound: 1}))
}

func TestFixedSizeBinsDropsExponentTerms(t *testing.T) {
	p := histogramParams()
	floating := MustNew(Histogram, p)
	p.EnforceFixedSizeBins = true
	fixed := MustNew(Histogram, p)

	dropped := p.HyperParametersCost + stat.NaturalNumbersUniversalCodeLength(1+p.MaxCentralBinExponent-p.CentralBinExponent)
	for _, k := range []int{1, 2, 10, 64} {
		assert.InDelta(t, dropped, floating.PartitionCost(k)-fixed.PartitionCost(k), 1e-9, "k=%d", k)
	}
	// the hierarchy level is still coded
	p.HierarchyLevel = 0
	shallow := MustNew(Histogram, p)
	assert.Greater(t, fixed.PartitionCost(3), shallow.PartitionCost(3))
}

func TestFloatingPointHelpers(t *testing.T) {
	ucl := stat.NaturalNumbersUniversalCodeLength
	assert.InDelta(t, math.Log(2)+ucl(4), CentralBinExponentCost(-3), 1e-12)
	assert.InDelta(t, 3*math.Log(2)+ucl(3), FloatingPointBinCost(true, -1, 2), 1e-12)
	assert.InDelta(t, FloatingPointBinCost(false, 1, -2), FloatingPointBinCost(true, -1, 2), 1e-12)
	assert.Panics(t, func() { FloatingPointBinCost(false, 0, 1) })
	assert.InDelta(t, 5*math.Log(2), MantissaCost(5), 1e-12)
	assert.InDelta(t, ucl(6)+10*math.Log(2), DomainBoundsMantissaCost(5), 1e-12)
	assert.Panics(t, func() { MantissaCost(-1) })
}

func TestReferenceNullCostBaseline(t *testing.T) {
	ucl := stat.NaturalNumbersUniversalCodeLength
	want := 3*math.Log(2) + ucl(2) + 3*math.Log(2) + ucl(3) + DomainBoundsMantissaCost(0) + 3*ucl(1)
	assert.InDelta(t, want, ReferenceNullCost(1000, 0), 1e-12)
	assert.InDelta(t, want+4*math.Log(2)*1000, ReferenceNullCost(1000, 4), 1e-9)
	assert.Panics(t, func() { ReferenceNullCost(-1, 0) })
}
