package dispatch

import (
	"fmt"
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
)

// Config defines dispatch-related settings.
type Config struct {
	AckTimeoutMS      int    `json:"ack_timeout_ms"`
	SendTimeoutMS     int    `json:"send_timeout_ms"`
	DefaultChargerID  string `json:"default_charger_id"`
	ProfileID         int    `json:"profile_id"`
	StackLevel        int    `json:"stack_level"`
	StrictCorrelation bool   `json:"strict_correlation"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.AckTimeoutMS == 0 {
		c.AckTimeoutMS = 2000
	}
	if c.SendTimeoutMS == 0 {
		c.SendTimeoutMS = 1000
	}
	if c.DefaultChargerID == "" {
		c.DefaultChargerID = "charger-001"
	}
	if c.ProfileID == 0 {
		c.ProfileID = 1
	}
}

// Validate checks the settings after defaults were applied.
func (c Config) Validate() error {
	if c.AckTimeoutMS < 0 {
		return fmt.Errorf("dispatch.ack_timeout_ms must be >= 0")
	}
	if c.SendTimeoutMS < 0 {
		return fmt.Errorf("dispatch.send_timeout_ms must be >= 0")
	}
	if c.StackLevel < 0 {
		return fmt.Errorf("dispatch.stack_level must be >= 0")
	}
	return nil
}

// AckTimeout is the time a connector waits for its acknowledgment.
func (c Config) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMS) * time.Millisecond
}

// SendTimeout bounds a single transport write.
func (c Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMS) * time.Millisecond
}

// ProfileOptions returns the identifiers stamped on every profile.
func (c Config) ProfileOptions() ocpp.ProfileOptions {
	return ocpp.ProfileOptions{ProfileID: c.ProfileID, StackLevel: c.StackLevel}
}
