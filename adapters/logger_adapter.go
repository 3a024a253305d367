package adapters

import "strings"

// LogLevel names a minimum severity. Config files spell it in any case.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelNone  LogLevel = "NONE"
)

// Normalize returns the canonical upper-case level, or LogLevelWarn for
// unknown names.
func (l LogLevel) Normalize() LogLevel {
	switch level := LogLevel(strings.ToUpper(string(l))); level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelNone:
		return level
	default:
		return LogLevelWarn
	}
}

// LoggerAdapter receives the pipeline's diagnostics. Messages are printf-style.
// Storage and delivery failures that the pipeline swallows are reported at Warn.
type LoggerAdapter interface {
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)
}

// NoOpLoggerAdapter discards everything.
type NoOpLoggerAdapter struct{}

// NewNoOpLoggerAdapter returns a logger that discards everything.
func NewNoOpLoggerAdapter() *NoOpLoggerAdapter {
	return &NoOpLoggerAdapter{}
}

func (*NoOpLoggerAdapter) Debug(string, ...any) {}
func (*NoOpLoggerAdapter) Info(string, ...any)  {}
func (*NoOpLoggerAdapter) Warn(string, ...any)  {}
func (*NoOpLoggerAdapter) Error(string, ...any) {}
