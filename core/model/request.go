package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
)

// ErrInvalidRequest is wrapped by every validation failure so callers can map
// it to a client error.
var ErrInvalidRequest = errors.New("invalid request")

const (
	DefaultAlpha       = 0.7
	DefaultSteps       = 8
	DefaultStepSeconds = 900
	DefaultChargerID   = "charger-001"

	// DefaultMaxSteps is 30 days of 15 minute steps.
	DefaultMaxSteps      = 2880
	DefaultMaxConnectors = 64
)

// Policy selects how a step's ceiling is split across connectors.
type Policy string

const (
	// PolicyEqualShare splits the ceiling equally and clips each share to the
	// connector maximum. Headroom left by a clipped connector is not reused.
	PolicyEqualShare Policy = "equal"
	// PolicyRedistribute cascades the headroom of clipped connectors to the
	// connectors that still have room.
	PolicyRedistribute Policy = "redistribute"
)

var chargerIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// OptimizationRequest is the caller supplied description of a site and its
// planning horizon. Optional fields are pointers so an explicit zero can be
// told apart from an omitted value.
type OptimizationRequest struct {
	SiteMaxKW      float64   `json:"siteMaxKw"`
	ConnectorMaxKW []float64 `json:"connectorMaxKw"`
	GridLimitKW    []float64 `json:"gridLimitKw,omitempty"`
	PriceSEKPerKWh []float64 `json:"priceSekPerKwh,omitempty"`
	Alpha          *float64  `json:"alpha,omitempty"`
	Steps          *int      `json:"steps,omitempty"`
	StepSeconds    *int      `json:"stepSeconds,omitempty"`
	ChargerID      string    `json:"chargerId,omitempty"`
	Policy         Policy    `json:"policy,omitempty"`
}

// Defaults holds the values applied to omitted request fields.
type Defaults struct {
	Alpha       float64
	Steps       int
	StepSeconds int
	ChargerID   string
	// MaxSteps and MaxConnectors bound the schedule size. Zero disables the
	// check.
	MaxSteps      int
	MaxConnectors int
}

// StandardDefaults returns the documented request defaults.
func StandardDefaults() Defaults {
	return Defaults{
		Alpha:       DefaultAlpha,
		Steps:       DefaultSteps,
		StepSeconds: DefaultStepSeconds,
		ChargerID:   DefaultChargerID,

		MaxSteps:      DefaultMaxSteps,
		MaxConnectors: DefaultMaxConnectors,
	}
}

// Params is a validated request with every default resolved.
type Params struct {
	SiteMaxKW      float64
	ConnectorMaxKW []float64
	GridLimitKW    []float64
	PriceSEKPerKWh []float64
	Alpha          float64
	Steps          int
	StepSeconds    int
	ChargerID      string
	Policy         Policy
}

// Connectors returns the number of connectors of the site.
func (p Params) Connectors() int { return len(p.ConnectorMaxKW) }

// Resolve validates the request and applies d to omitted fields. Alpha outside
// [0,1] is clamped rather than rejected.
func (r OptimizationRequest) Resolve(d Defaults) (Params, error) {
	if math.IsNaN(r.SiteMaxKW) || math.IsInf(r.SiteMaxKW, 0) || r.SiteMaxKW <= 0 {
		return Params{}, fmt.Errorf("%w: siteMaxKw must be > 0", ErrInvalidRequest)
	}
	if len(r.ConnectorMaxKW) == 0 {
		return Params{}, fmt.Errorf("%w: connectorMaxKw[] required", ErrInvalidRequest)
	}
	if d.MaxConnectors > 0 && len(r.ConnectorMaxKW) > d.MaxConnectors {
		return Params{}, fmt.Errorf("%w: at most %d connectors allowed", ErrInvalidRequest, d.MaxConnectors)
	}
	if err := nonNegative("connectorMaxKw", r.ConnectorMaxKW); err != nil {
		return Params{}, err
	}
	if err := nonNegative("gridLimitKw", r.GridLimitKW); err != nil {
		return Params{}, err
	}
	for i, v := range r.PriceSEKPerKWh {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Params{}, fmt.Errorf("%w: priceSekPerKwh[%d] is not a number", ErrInvalidRequest, i)
		}
	}

	p := Params{
		SiteMaxKW:      r.SiteMaxKW,
		ConnectorMaxKW: r.ConnectorMaxKW,
		GridLimitKW:    r.GridLimitKW,
		PriceSEKPerKWh: r.PriceSEKPerKWh,
		Alpha:          d.Alpha,
		Steps:          d.Steps,
		StepSeconds:    d.StepSeconds,
		ChargerID:      d.ChargerID,
		Policy:         PolicyEqualShare,
	}
	if r.Alpha != nil {
		if math.IsNaN(*r.Alpha) {
			return Params{}, fmt.Errorf("%w: alpha is not a number", ErrInvalidRequest)
		}
		p.Alpha = *r.Alpha
	}
	p.Alpha = ClampAlpha(p.Alpha)
	if r.Steps != nil {
		if *r.Steps < 0 {
			return Params{}, fmt.Errorf("%w: steps must be >= 0", ErrInvalidRequest)
		}
		p.Steps = *r.Steps
	}
	if d.MaxSteps > 0 && p.Steps > d.MaxSteps {
		return Params{}, fmt.Errorf("%w: steps must be <= %d", ErrInvalidRequest, d.MaxSteps)
	}
	if r.StepSeconds != nil {
		if *r.StepSeconds <= 0 {
			return Params{}, fmt.Errorf("%w: stepSeconds must be > 0", ErrInvalidRequest)
		}
		p.StepSeconds = *r.StepSeconds
	}
	if r.ChargerID != "" {
		p.ChargerID = r.ChargerID
	}
	if err := ValidateChargerID(p.ChargerID); err != nil {
		return Params{}, err
	}
	switch r.Policy {
	case "", PolicyEqualShare:
	case PolicyRedistribute:
		p.Policy = PolicyRedistribute
	default:
		return Params{}, fmt.Errorf("%w: unknown policy %q", ErrInvalidRequest, r.Policy)
	}
	return p, nil
}

// ClampAlpha bounds the price sensitivity to [0,1].
func ClampAlpha(a float64) float64 {
	return math.Max(0, math.Min(1, a))
}

// ValidateChargerID checks that id can be used as a station identifier in
// URLs and MQTT topics.
func ValidateChargerID(id string) error {
	if !chargerIDPattern.MatchString(id) {
		return fmt.Errorf("%w: malformed chargerId %q", ErrInvalidRequest, id)
	}
	return nil
}

func nonNegative(field string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s[%d] must be a non-negative number", ErrInvalidRequest, field, i)
		}
	}
	return nil
}
