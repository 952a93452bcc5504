package runstore

import (
	"context"
	"fmt"
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/factory"
	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
)

// Config is the module config shared by both SQL backends.
type Config struct {
	DSN string `json:"dsn"`
	// ConnectTimeoutMS bounds the initial Postgres ping.
	ConnectTimeoutMS int `json:"connect_timeout_ms"`
}

func decode(conf map[string]any) (Config, error) {
	var c Config
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.ConnectTimeoutMS == 0 {
		c.ConnectTimeoutMS = 5000
	}
	return c, nil
}

func init() {
	_ = runs.RegisterBackend("sqlite", func(conf map[string]any) (runs.Store, error) {
		c, err := decode(conf)
		if err != nil {
			return nil, err
		}
		if c.DSN == "" {
			c.DSN = "runs.db"
		}
		return NewSQLiteStore(c.DSN)
	})
	_ = runs.RegisterBackend("postgres", func(conf map[string]any) (runs.Store, error) {
		c, err := decode(conf)
		if err != nil {
			return nil, err
		}
		if c.DSN == "" {
			return nil, fmt.Errorf("postgres: dsn is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.ConnectTimeoutMS)*time.Millisecond)
		defer cancel()
		return NewPostgresStore(ctx, c.DSN)
	})
}
