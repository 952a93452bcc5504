package model

import "time"

// RunOutput is the stored output of a run-and-dispatch request.
type RunOutput struct {
	OptimizeOutput  OptimizeOutput    `json:"optimizeOutput"`
	DispatchResults []DispatchOutcome `json:"dispatchResults"`
}

// Run is a persisted run as read back from the store.
type Run struct {
	ID        int64               `json:"id"`
	CreatedAt time.Time           `json:"createdAt"`
	Request   OptimizationRequest `json:"request"`
	RunOutput
}

// RunResult is returned to the caller once a run has been persisted.
type RunResult struct {
	RunID           int64             `json:"runId"`
	CreatedAt       time.Time         `json:"createdAt"`
	OptimizeOutput  OptimizeOutput    `json:"optimizeOutput"`
	DispatchResults []DispatchOutcome `json:"dispatchResults"`
}
