package planner

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

// ErrNoConnectors is returned when the site has no connector to allocate to.
var ErrNoConnectors = errors.New("planner: at least one connector is required")

const headroomEpsilon = 1e-9

// Allocation is a per-step, per-connector power schedule.
type Allocation struct {
	PerConnectorKW [][]float64
	SiteKW         []float64
}

// Allocate splits every step ceiling across the connectors according to
// policy.
func Allocate(effectiveCapKW, connectorMaxKW []float64, policy model.Policy) (Allocation, error) {
	if len(connectorMaxKW) == 0 {
		return Allocation{}, ErrNoConnectors
	}
	split := equalShare
	if policy == model.PolicyRedistribute {
		split = redistribute
	}
	a := Allocation{
		PerConnectorKW: make([][]float64, len(effectiveCapKW)),
		SiteKW:         make([]float64, len(effectiveCapKW)),
	}
	for t, ceiling := range effectiveCapKW {
		row := split(ceiling, connectorMaxKW)
		a.PerConnectorKW[t] = row
		a.SiteKW[t] = floats.Sum(row)
	}
	return a, nil
}

// equalShare gives every connector ceiling/n clipped to [0, its max]. A
// connector whose max is below the share leaves the difference unused.
func equalShare(ceiling float64, maxKW []float64) []float64 {
	share := ceiling / float64(len(maxKW))
	row := make([]float64, len(maxKW))
	for c, mx := range maxKW {
		row[c] = math.Max(0, math.Min(mx, share))
	}
	return row
}

// redistribute water-fills the ceiling: headroom a clipped connector cannot
// take is split again among the connectors that still have room.
func redistribute(ceiling float64, maxKW []float64) []float64 {
	row := make([]float64, len(maxKW))
	open := make([]int, 0, len(maxKW))
	for c, mx := range maxKW {
		if mx > headroomEpsilon {
			open = append(open, c)
		}
	}
	remaining := math.Max(0, ceiling)
	for remaining > headroomEpsilon && len(open) > 0 {
		share := remaining / float64(len(open))
		next := open[:0:0]
		for _, c := range open {
			give := math.Min(maxKW[c]-row[c], share)
			row[c] += give
			remaining -= give
			if maxKW[c]-row[c] > headroomEpsilon {
				next = append(next, c)
			}
		}
		if len(next) == len(open) {
			break
		}
		open = next
	}
	return row
}

// EstimateCost returns Σ siteKW[t]·h·price[t] where h is the step length in
// hours, or nil when prices do not cover every step.
func EstimateCost(siteKW, prices []float64, stepSeconds int) *float64 {
	if !coversSteps(prices, len(siteKW)) {
		return nil
	}
	hours := float64(stepSeconds) / 3600
	cost := 0.0
	for t, kw := range siteKW {
		cost += kw * hours * prices[t]
	}
	return &cost
}
