// Package logger provides the zerolog implementation of the core logging
// contract.
package logger

import corelogger "github.com/yaswanthhh/ev-charge-optimizer/core/logger"

// Alias the core interface for convenience.
// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a Logger for the given component. The output format follows
// the APP_ENV variable and the process-wide options installed by Setup.
func New(component string) Logger {
	return NewZerologLogger(component)
}
