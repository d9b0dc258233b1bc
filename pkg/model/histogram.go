package model

import (
	"fmt"

	"modl/pkg/stat"
)

func (m Model) histogramPartitionCost(k int) float64 {
	p := m.params
	if k < 1 || p.InstanceCount <= 0 || p.MinBinLength <= 0 || p.PartileCount <= 0 || k > p.PartileCount {
		panic(fmt.Sprintf("model: histogram PartitionCost(%d) with N=%d P=%d minBinLength=%g",
			k, p.InstanceCount, p.PartileCount, p.MinBinLength))
	}

	cost := p.HyperParametersCost
	cost += ucl(1 + p.MaxCentralBinExponent - p.CentralBinExponent)

	// fixed-width bins: neither the hyper-parameters nor the exponent are coded
	if p.EnforceFixedSizeBins {
		cost = 0
	}

	cost += ucl(1 + p.HierarchyLevel)
	cost += ucl(k)
	cost += distributionCost(p.PartileCount, k)
	cost += distributionCost(p.InstanceCount, k)
	cost += lnF(p.InstanceCount)
	cost -= float64(p.InstanceCount) * logf(p.MinBinLength)
	return cost
}

// CentralBinExponentCost codes the sign and magnitude of the central bin exponent.
func CentralBinExponentCost(exponent int) float64 {
	return stat.Log2 + ucl(abs(exponent)+1)
}

// FloatingPointBinCost codes one floating-point bin: central flag, sign, exponent sign and magnitude.
func FloatingPointBinCost(isCentral bool, sign, exponent int) float64 {
	if sign != -1 && sign != 1 {
		panic(fmt.Sprintf("model: bin sign must be -1 or 1, got %d", sign))
	}
	return 3*stat.Log2 + ucl(abs(exponent)+1)
}

func MantissaCost(bits int) float64 {
	if bits < 0 {
		panic(fmt.Sprintf("model: negative mantissa bit number %d", bits))
	}
	return float64(bits) * stat.Log2
}

func DomainBoundsMantissaCost(bits int) float64 {
	if bits < 0 {
		panic(fmt.Sprintf("model: negative mantissa bit number %d", bits))
	}
	return ucl(bits+1) + 2*MantissaCost(bits)
}

// ReferenceNullCost is the cost of the one-bin ]1, 2] histogram holding frequency
// instances coded with mantissaBits bits each. It does not depend on the fixed-size mode.
func ReferenceNullCost(frequency, mantissaBits int) float64 {
	if frequency < 0 || mantissaBits < 0 {
		panic(fmt.Sprintf("model: ReferenceNullCost(%d, %d)", frequency, mantissaBits))
	}
	cost := FloatingPointBinCost(false, 1, 1)
	cost += FloatingPointBinCost(false, 1, 2)
	cost += DomainBoundsMantissaCost(0)

	// central bin exponent, granularity and part number
	cost += 3 * ucl(1)

	cost += float64(mantissaBits) * stat.Log2 * float64(frequency)
	return cost
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
