// Package model implements the MODL cost models. A model is an immutable value
// built once from Params; every method is a pure function of its arguments.
package model

import (
	"errors"
	"fmt"

	"modl/pkg/common"
	"modl/pkg/stat"
)

// Epsilon is the tolerance under which two costs are considered equal.
const Epsilon = 1e-6

// Kind selects the cost model variant.
type Kind int

const (
	Multinomial Kind = iota
	Hierarchical
	Histogram
)

func (k Kind) String() string {
	switch k {
	case Multinomial:
		return "multinomial"
	case Hierarchical:
		return "hierarchical"
	case Histogram:
		return "histogram"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "multinomial", "":
		return Multinomial, nil
	case "hierarchical":
		return Hierarchical, nil
	case "histogram":
		return Histogram, nil
	}
	return 0, fmt.Errorf("unknown cost model %q", s)
}

var ErrInvalidParams = errors.New("invalid cost model parameters")

// Params are the read-only inputs of a cost model.
type Params struct {
	InstanceCount       int     `json:"instance_count" yaml:"instance_count"`
	PartileCount        int     `json:"partile_count" yaml:"partile_count"`
	MaxPartCount        int     `json:"max_part_count" yaml:"max_part_count"` // 0: unbounded
	HyperParametersCost float64 `json:"hyper_parameters_cost" yaml:"hyper_parameters_cost"`
	HierarchyLevel      int     `json:"hierarchy_level" yaml:"hierarchy_level"`

	// histogram only
	MinBinLength          float64 `json:"min_bin_length" yaml:"min_bin_length"`
	CentralBinExponent    int     `json:"central_bin_exponent" yaml:"central_bin_exponent"`
	MinCentralBinExponent int     `json:"min_central_bin_exponent" yaml:"min_central_bin_exponent"`
	MaxCentralBinExponent int     `json:"max_central_bin_exponent" yaml:"max_central_bin_exponent"`
	EnforceFixedSizeBins  bool    `json:"enforce_fixed_size_bins" yaml:"enforce_fixed_size_bins"`
}

// ParamsForTable fills the table statistics: instance count and partile count.
func ParamsForTable(ft *common.FrequencyTable, base Params) Params {
	base.InstanceCount = ft.TotalFrequency()
	base.PartileCount = ft.AtomCount()
	return base
}

// CostModel is the contract shared by every variant.
type CostModel interface {
	Kind() Kind
	Params() Params
	PartitionCost(k int) float64
	PartCost(part common.Part) float64
	PartitionGlobalCost(parts []common.Part) float64
	PartitionDeltaCost(k int) float64
	PartitionModelCost(k int) float64
	PartModelCost(part common.Part) float64
}

// Model is the tagged variant over the closed set of kinds.
type Model struct {
	kind   Kind
	params Params
}

// New validates params for kind and returns the model.
func New(kind Kind, p Params) (Model, error) {
	if p.InstanceCount < 0 {
		return Model{}, fmt.Errorf("instance count %d: %w", p.InstanceCount, ErrInvalidParams)
	}
	if p.PartileCount < 1 {
		return Model{}, fmt.Errorf("partile count %d: %w", p.PartileCount, ErrInvalidParams)
	}
	if p.MaxPartCount < 0 {
		return Model{}, fmt.Errorf("max part count %d: %w", p.MaxPartCount, ErrInvalidParams)
	}
	if p.HierarchyLevel < 0 {
		return Model{}, fmt.Errorf("hierarchy level %d: %w", p.HierarchyLevel, ErrInvalidParams)
	}
	switch kind {
	case Multinomial, Hierarchical:
	case Histogram:
		if p.InstanceCount == 0 {
			return Model{}, fmt.Errorf("histogram needs instances: %w", ErrInvalidParams)
		}
		if p.MinBinLength <= 0 {
			return Model{}, fmt.Errorf("min bin length %g: %w", p.MinBinLength, ErrInvalidParams)
		}
		if p.CentralBinExponent < p.MinCentralBinExponent || p.CentralBinExponent > p.MaxCentralBinExponent {
			return Model{}, fmt.Errorf("central bin exponent %d not in [%d, %d]: %w",
				p.CentralBinExponent, p.MinCentralBinExponent, p.MaxCentralBinExponent, ErrInvalidParams)
		}
	default:
		return Model{}, fmt.Errorf("kind %d: %w", int(kind), ErrInvalidParams)
	}
	return Model{kind: kind, params: p}, nil
}

// MustNew is New for parameters known to be valid.
func MustNew(kind Kind, p Params) Model {
	m, err := New(kind, p)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Model) Kind() Kind {
	return m.kind
}

func (m Model) Params() Params {
	return m.params
}

// PartitionCost is the prior code length of a partition into exactly k parts.
func (m Model) PartitionCost(k int) float64 {
	if m.kind == Histogram {
		return m.histogramPartitionCost(k)
	}
	m.checkPartNumber(k)
	cost := m.params.HyperParametersCost
	if m.kind == Hierarchical {
		cost += ucl(1 + m.params.HierarchyLevel)
	}
	cost += ucl(k)
	cost += distributionCost(m.params.PartileCount, k)
	cost += distributionCost(m.params.InstanceCount, k)
	cost += lnF(m.params.InstanceCount)
	return cost
}

// PartitionDeltaCost is the cost variation when going from k to k-1 parts.
func (m Model) PartitionDeltaCost(k int) float64 {
	if k <= 1 {
		panic(fmt.Sprintf("model: delta cost requires k > 1, got %d", k))
	}
	return m.PartitionCost(k-1) - m.PartitionCost(k)
}

// PartCost is the likelihood part of one part's code length.
func (m Model) PartCost(part common.Part) float64 {
	if part.Frequency < 0 {
		panic(fmt.Sprintf("model: negative part frequency %d", part.Frequency))
	}
	cost := -lnF(part.Frequency)
	if m.kind == Histogram && part.Bounded() {
		cost += float64(part.Frequency) * lengthLog(part)
	}
	return cost
}

func (m Model) PartitionGlobalCost(parts []common.Part) float64 {
	return globalCost(m, parts)
}

// PartitionModelCost removes the multinomial likelihood terms from PartitionCost.
func (m Model) PartitionModelCost(k int) float64 {
	cost := m.PartitionCost(k) - lnF(m.params.InstanceCount)
	if m.kind == Histogram {
		cost += float64(m.params.InstanceCount) * logf(m.params.MinBinLength)
	}
	return cost
}

// PartModelCost is zero: parts carry no prior term.
func (m Model) PartModelCost(part common.Part) float64 {
	return 0
}

func (m Model) checkPartNumber(k int) {
	if k < 1 || k > m.params.PartileCount {
		panic(fmt.Sprintf("model: part number %d not in [1, %d]", k, m.params.PartileCount))
	}
}

// distributionCost is log C(n + k - 1, k - 1).
func distributionCost(n, k int) float64 {
	return stat.LnBinomial(n+k-1, k-1)
}
