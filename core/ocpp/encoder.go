package ocpp

import "github.com/shopspring/decimal"

// ProfileOptions identifies the profile slot written on the station.
type ProfileOptions struct {
	ProfileID  int `json:"profile_id"`
	StackLevel int `json:"stack_level"`
}

// DefaultProfileOptions returns profile id 1 on stack level 0.
func DefaultProfileOptions() ProfileOptions {
	return ProfileOptions{ProfileID: 1}
}

var thousand = decimal.NewFromInt(1000)

// EncodePeriods converts a per-step kW row into schedule periods. Period i
// starts at i*stepSeconds and its limit is the power in W rounded to 0.1 W.
func EncodePeriods(rowKW []float64, stepSeconds int) []ChargingSchedulePeriod {
	periods := make([]ChargingSchedulePeriod, len(rowKW))
	for i, kw := range rowKW {
		periods[i] = ChargingSchedulePeriod{
			StartPeriod: i * stepSeconds,
			Limit:       KWToWatts(kw),
		}
	}
	return periods
}

// DecodePeriods converts period limits back to kW.
func DecodePeriods(periods []ChargingSchedulePeriod) []float64 {
	row := make([]float64, len(periods))
	for i, p := range periods {
		row[i] = decimal.NewFromFloat(p.Limit).Div(thousand).InexactFloat64()
	}
	return row
}

// KWToWatts converts kW to W rounded half away from zero to one decimal.
func KWToWatts(kw float64) float64 {
	return decimal.NewFromFloat(kw).Mul(thousand).Round(1).InexactFloat64()
}

// BuildProfile returns the absolute default profile of one connector.
func BuildProfile(connectorID int, rowKW []float64, stepSeconds int, opts ProfileOptions) SetChargingProfile {
	return SetChargingProfile{
		ConnectorID: connectorID,
		CSChargingProfiles: ChargingProfile{
			ChargingProfileID:      opts.ProfileID,
			StackLevel:             opts.StackLevel,
			ChargingProfilePurpose: PurposeTxDefault,
			ChargingProfileKind:    KindAbsolute,
			ChargingSchedule: ChargingSchedule{
				ChargingRateUnit:       RateUnitW,
				ChargingSchedulePeriod: EncodePeriods(rowKW, stepSeconds),
			},
		},
	}
}
