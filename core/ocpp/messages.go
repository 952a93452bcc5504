// Package ocpp holds the subset of OCPP 1.6 smart charging messages exchanged
// with stations, the schedule encoder and the framing used on the station
// connections.
package ocpp

import (
	"errors"
	"fmt"
)

type ChargingProfilePurpose string

const (
	PurposeChargePointMax ChargingProfilePurpose = "ChargePointMaxProfile"
	PurposeTxDefault      ChargingProfilePurpose = "TxDefaultProfile"
	PurposeTx             ChargingProfilePurpose = "TxProfile"
)

type ChargingProfileKind string

const (
	KindAbsolute  ChargingProfileKind = "Absolute"
	KindRecurring ChargingProfileKind = "Recurring"
	KindRelative  ChargingProfileKind = "Relative"
)

type ChargingRateUnit string

const (
	RateUnitW ChargingRateUnit = "W"
	RateUnitA ChargingRateUnit = "A"
)

// ChargingSchedulePeriod is one slice of a schedule. StartPeriod is the
// offset in seconds from the schedule start, Limit is expressed in the unit
// of the schedule.
type ChargingSchedulePeriod struct {
	StartPeriod int     `json:"startPeriod"`
	Limit       float64 `json:"limit"`
}

type ChargingSchedule struct {
	ChargingRateUnit       ChargingRateUnit         `json:"chargingRateUnit"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"chargingSchedulePeriod"`
}

type ChargingProfile struct {
	ChargingProfileID      int                    `json:"chargingProfileId"`
	StackLevel             int                    `json:"stackLevel"`
	ChargingProfilePurpose ChargingProfilePurpose `json:"chargingProfilePurpose"`
	ChargingProfileKind    ChargingProfileKind    `json:"chargingProfileKind"`
	ChargingSchedule       ChargingSchedule       `json:"chargingSchedule"`
}

// SetChargingProfile is the request sent to a station for one connector.
type SetChargingProfile struct {
	ConnectorID        int             `json:"connectorId"`
	CSChargingProfiles ChargingProfile `json:"csChargingProfiles"`
}

var ErrInvalidProfile = errors.New("invalid charging profile")

// Validate checks the structural constraints a station relies on.
func (m SetChargingProfile) Validate() error {
	if m.ConnectorID < 0 {
		return fmt.Errorf("%w: connectorId must be >= 0", ErrInvalidProfile)
	}
	sched := m.CSChargingProfiles.ChargingSchedule
	if sched.ChargingRateUnit != RateUnitW && sched.ChargingRateUnit != RateUnitA {
		return fmt.Errorf("%w: unknown rate unit %q", ErrInvalidProfile, sched.ChargingRateUnit)
	}
	if len(sched.ChargingSchedulePeriod) == 0 {
		return fmt.Errorf("%w: chargingSchedulePeriod[] required", ErrInvalidProfile)
	}
	prev := -1
	for i, p := range sched.ChargingSchedulePeriod {
		if p.StartPeriod <= prev {
			return fmt.Errorf("%w: period %d does not start after the previous one", ErrInvalidProfile, i)
		}
		if p.Limit < 0 {
			return fmt.Errorf("%w: period %d has a negative limit", ErrInvalidProfile, i)
		}
		prev = p.StartPeriod
	}
	return nil
}
