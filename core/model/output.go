package model

// OptimizeOutput is the planned schedule for one run. PerConnectorKW is
// indexed [step][connector].
type OptimizeOutput struct {
	Steps            int         `json:"steps"`
	PerConnectorKW   [][]float64 `json:"perConnectorKw"`
	SiteKW           []float64   `json:"siteKw"`
	EffectiveCapKW   []float64   `json:"effectiveCapKw"`
	EstimatedCostSEK *float64    `json:"estimatedCostSek"`
}

// ConnectorRow returns the per-step power of the connector at index c
// (zero based).
func (o OptimizeOutput) ConnectorRow(c int) []float64 {
	row := make([]float64, len(o.PerConnectorKW))
	for t, step := range o.PerConnectorKW {
		if c < len(step) {
			row[t] = step[c]
		}
	}
	return row
}

// Connectors returns the number of connectors in the schedule. An empty
// schedule reports zero.
func (o OptimizeOutput) Connectors() int {
	if len(o.PerConnectorKW) == 0 {
		return 0
	}
	return len(o.PerConnectorKW[0])
}
