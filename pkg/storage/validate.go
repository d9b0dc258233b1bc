package storage

import (
	"errors"
	"fmt"
	"math"
)

// ProbabilityTolerance is the slack allowed on the implied probability sum.
const ProbabilityTolerance = 1e-6

var ErrInvalidCost = errors.New("invalid attribute cost")

// ValidateCosts checks that every cost is present and non-negative and that
// the implied prior probabilities exp(-(log 2 + cost)) sum to at most one.
func ValidateCosts(costs []AttributeCost) error {
	sum := 0.0
	for _, c := range costs {
		if c.Cost == nil {
			return fmt.Errorf("attribute %q: missing cost: %w", c.Attribute, ErrInvalidCost)
		}
		if *c.Cost < 0 || math.IsNaN(*c.Cost) {
			return fmt.Errorf("attribute %q: cost %g: %w", c.Attribute, *c.Cost, ErrInvalidCost)
		}
		sum += math.Exp(-(math.Log(2) + *c.Cost))
	}
	if sum > 1+ProbabilityTolerance {
		return fmt.Errorf("probability sum %g exceeds 1: %w", sum, ErrInvalidCost)
	}
	return nil
}

// DefaultCosts gives every attribute the uniform prior cost log(n).
func DefaultCosts(attributes []string) []AttributeCost {
	out := make([]AttributeCost, len(attributes))
	cost := 0.0
	if len(attributes) > 0 {
		cost = math.Log(float64(len(attributes)))
	}
	for i, a := range attributes {
		out[i] = NewAttributeCost(a, cost)
	}
	return out
}

// ResolveCosts returns imported when it validates, and the defaults otherwise
// together with the validation error.
func ResolveCosts(imported []AttributeCost) ([]AttributeCost, error) {
	if err := ValidateCosts(imported); err != nil {
		names := make([]string, len(imported))
		for i, c := range imported {
			names[i] = c.Attribute
		}
		return DefaultCosts(names), err
	}
	return imported, nil
}
