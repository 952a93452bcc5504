// Package planner turns a site description into a per-connector power
// schedule: per-step ceilings first, then the split across connectors.
package planner

import "github.com/yaswanthhh/ev-charge-optimizer/core/model"

// Optimize computes the schedule of a validated request.
func Optimize(p model.Params) (model.OptimizeOutput, error) {
	capacity := PlanCapacity(p.SiteMaxKW, p.GridLimitKW, p.PriceSEKPerKWh, p.Alpha, p.Steps)
	alloc, err := Allocate(capacity.EffectiveCapKW, p.ConnectorMaxKW, p.Policy)
	if err != nil {
		return model.OptimizeOutput{}, err
	}
	return model.OptimizeOutput{
		Steps:            p.Steps,
		PerConnectorKW:   alloc.PerConnectorKW,
		SiteKW:           alloc.SiteKW,
		EffectiveCapKW:   capacity.EffectiveCapKW,
		EstimatedCostSEK: EstimateCost(alloc.SiteKW, p.PriceSEKPerKWh, p.StepSeconds),
	}, nil
}
