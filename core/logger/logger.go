// Package logger declares the logging contract shared by every component.
package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StructuredLogger can log structured fields at every level. It is
// implemented by the zerolog adapter.
type StructuredLogger interface {
	Logger
	Infow(msg string, fields map[string]any)
	Errorw(msg string, fields map[string]any)
}

// Infow logs fields at info level when l supports it and falls back to a
// formatted line otherwise.
func Infow(l Logger, msg string, fields map[string]any) {
	if sl, ok := l.(StructuredLogger); ok {
		sl.Infow(msg, fields)
		return
	}
	l.Infof("%s %v", msg, fields)
}

// Errorw logs fields at error level when l supports it and falls back to a
// formatted line otherwise.
func Errorw(l Logger, msg string, fields map[string]any) {
	if sl, ok := l.(StructuredLogger); ok {
		sl.Errorw(msg, fields)
		return
	}
	l.Errorf("%s %v", msg, fields)
}
