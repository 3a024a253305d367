package adapters

import (
	"io"
	"log"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const logPrefix = "[Courier]"

// LoggersAdapter implements LoggerAdapter on top of ldlog.Loggers.
type LoggersAdapter struct {
	loggers ldlog.Loggers
}

// Ensure LoggersAdapter implements LoggerAdapter interface
var _ LoggerAdapter = (*LoggersAdapter)(nil)

// NewLoggersAdapter creates a logger writing to standard error at the given minimum level.
func NewLoggersAdapter(level LogLevel) *LoggersAdapter {
	return newLoggersAdapterTo(os.Stderr, level)
}

func newLoggersAdapterTo(out io.Writer, level LogLevel) *LoggersAdapter {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(log.New(out, logPrefix+" ", log.LstdFlags))
	loggers.SetMinLevel(ParseLogLevel(string(level)))
	return &LoggersAdapter{loggers: loggers}
}

// WrapLoggers adapts an existing ldlog.Loggers, keeping its base logger and
// level and tagging each message with the library name.
func WrapLoggers(loggers ldlog.Loggers) *LoggersAdapter {
	loggers.SetPrefix(logPrefix)
	return &LoggersAdapter{loggers: loggers}
}

// ParseLogLevel maps a level name to its ldlog equivalent. Unknown names map to Warn.
func ParseLogLevel(name string) ldlog.LogLevel {
	switch LogLevel(name).Normalize() {
	case LogLevelDebug:
		return ldlog.Debug
	case LogLevelInfo:
		return ldlog.Info
	case LogLevelError:
		return ldlog.Error
	case LogLevelNone:
		return ldlog.None
	default:
		return ldlog.Warn
	}
}

func (l *LoggersAdapter) Debug(message string, args ...any) {
	if l.loggers.IsDebugEnabled() {
		l.loggers.Debugf(message, args...)
	}
}

func (l *LoggersAdapter) Info(message string, args ...any) {
	l.loggers.Infof(message, args...)
}

func (l *LoggersAdapter) Warn(message string, args ...any) {
	l.loggers.Warnf(message, args...)
}

func (l *LoggersAdapter) Error(message string, args ...any) {
	l.loggers.Errorf(message, args...)
}
