package planner

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Capacity holds the per-step ceilings of a site.
type Capacity struct {
	// CapKW is min(site max, grid limit) per step.
	CapKW []float64
	// EffectiveCapKW is CapKW after the price throttle.
	EffectiveCapKW []float64
	// PriceNorm is the min-max normalised price per step, nil when no full
	// price series was supplied.
	PriceNorm []float64
}

// PlanCapacity computes the ceilings of steps time slices. Grid limits past
// the end of gridLimitKW default to siteMaxKW. The price throttle only
// applies when prices cover every step.
func PlanCapacity(siteMaxKW float64, gridLimitKW, prices []float64, alpha float64, steps int) Capacity {
	c := Capacity{
		CapKW:          make([]float64, steps),
		EffectiveCapKW: make([]float64, steps),
	}
	for t := 0; t < steps; t++ {
		c.CapKW[t] = siteMaxKW
		if t < len(gridLimitKW) {
			c.CapKW[t] = math.Min(siteMaxKW, gridLimitKW[t])
		}
	}
	if !coversSteps(prices, steps) {
		copy(c.EffectiveCapKW, c.CapKW)
		return c
	}
	c.PriceNorm = NormalizePrices(prices[:steps])
	for t := range c.CapKW {
		c.EffectiveCapKW[t] = math.Max(0, c.CapKW[t]*(1-alpha*c.PriceNorm[t]))
	}
	return c
}

// NormalizePrices maps prices to [0,1] with min-max scaling. A flat series
// maps to all zeros.
func NormalizePrices(prices []float64) []float64 {
	norm := make([]float64, len(prices))
	if len(prices) == 0 {
		return norm
	}
	lo, hi := floats.Min(prices), floats.Max(prices)
	if hi == lo {
		return norm
	}
	for i, p := range prices {
		norm[i] = (p - lo) / (hi - lo)
	}
	return norm
}

func coversSteps(prices []float64, steps int) bool {
	return prices != nil && len(prices) >= steps
}
