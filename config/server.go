package config

import (
	"fmt"
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/factory"
	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Address string `json:"address"`
	// AuthToken protects the mutating routes with a bearer token when set.
	AuthToken         string `json:"auth_token"`
	ReadTimeoutMS     int    `json:"read_timeout_ms"`
	ShutdownTimeoutMS int    `json:"shutdown_timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeoutMS == 0 {
		c.ReadTimeoutMS = 10000
	}
	if c.ShutdownTimeoutMS == 0 {
		c.ShutdownTimeoutMS = 5000
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	if c.ReadTimeoutMS < 0 || c.ShutdownTimeoutMS < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	return nil
}

// ReadTimeout bounds reading a request.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// ShutdownTimeout bounds the graceful shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// PlannerConfig holds the defaults applied to omitted request fields.
type PlannerConfig struct {
	DefaultAlpha       *float64 `json:"default_alpha"`
	DefaultSteps       int      `json:"default_steps"`
	DefaultStepSeconds int      `json:"default_step_seconds"`
	// MaxSteps and MaxConnectors reject oversized requests.
	MaxSteps      int `json:"max_steps"`
	MaxConnectors int `json:"max_connectors"`
}

// SetDefaults applies the documented request defaults.
func (c *PlannerConfig) SetDefaults() {
	d := model.StandardDefaults()
	if c.DefaultAlpha == nil {
		a := d.Alpha
		c.DefaultAlpha = &a
	}
	if c.DefaultSteps == 0 {
		c.DefaultSteps = d.Steps
	}
	if c.DefaultStepSeconds == 0 {
		c.DefaultStepSeconds = d.StepSeconds
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.MaxConnectors == 0 {
		c.MaxConnectors = d.MaxConnectors
	}
}

// Validate checks the defaults.
func (c PlannerConfig) Validate() error {
	if c.DefaultAlpha != nil && (*c.DefaultAlpha < 0 || *c.DefaultAlpha > 1) {
		return fmt.Errorf("default_alpha must be within [0,1]")
	}
	if c.DefaultSteps < 0 {
		return fmt.Errorf("default_steps must be >= 0")
	}
	if c.DefaultStepSeconds < 0 {
		return fmt.Errorf("default_step_seconds must be > 0")
	}
	if c.MaxSteps < 0 || c.MaxConnectors < 0 {
		return fmt.Errorf("max_steps and max_connectors must be >= 0")
	}
	if c.MaxSteps > 0 && c.DefaultSteps > c.MaxSteps {
		return fmt.Errorf("default_steps must be <= max_steps")
	}
	return nil
}

// Defaults converts the section into request defaults. chargerID is the
// dispatch default station.
func (c PlannerConfig) Defaults(chargerID string) model.Defaults {
	d := model.StandardDefaults()
	if c.DefaultAlpha != nil {
		d.Alpha = *c.DefaultAlpha
	}
	if c.DefaultSteps > 0 {
		d.Steps = c.DefaultSteps
	}
	if c.DefaultStepSeconds > 0 {
		d.StepSeconds = c.DefaultStepSeconds
	}
	if chargerID != "" {
		d.ChargerID = chargerID
	}
	if c.MaxSteps > 0 {
		d.MaxSteps = c.MaxSteps
	}
	if c.MaxConnectors > 0 {
		d.MaxConnectors = c.MaxConnectors
	}
	return d
}

// StoreConfig selects where runs are persisted.
type StoreConfig struct {
	// Backend is memory, sqlite or postgres.
	Backend string `json:"backend"`
	// DSN is the SQLite file path or the Postgres connection string.
	DSN string `json:"dsn"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.DSN == "" {
		c.DSN = "runs.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// Module converts the section into the module config understood by
// runs.Open.
func (c StoreConfig) Module() factory.ModuleConfig {
	conf := map[string]any{}
	if c.DSN != "" {
		conf["dsn"] = c.DSN
	}
	return factory.ModuleConfig{Type: c.Backend, Conf: conf}
}
