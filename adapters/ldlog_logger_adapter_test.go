package adapters

import (
	"bytes"
	"strings"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]ldlog.LogLevel{
		"DEBUG":   ldlog.Debug,
		"debug":   ldlog.Debug,
		"INFO":    ldlog.Info,
		"WARN":    ldlog.Warn,
		"ERROR":   ldlog.Error,
		"NONE":    ldlog.None,
		"unknown": ldlog.Warn,
		"":        ldlog.Warn,
	}
	for name, expected := range cases {
		assert.Equal(t, expected, ParseLogLevel(name), "level %q", name)
	}
}

func TestLoggersAdapter_FormatsWithPrefix(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)
	logger := WrapLoggers(mockLog.Loggers)

	logger.Warn("dropped %d events", 3)
	logger.Error("save failed: %v", "disk full")
	logger.Info("client started")

	mockLog.AssertMessageMatch(t, true, ldlog.Warn, `\[Courier\] dropped 3 events`)
	mockLog.AssertMessageMatch(t, true, ldlog.Error, "save failed: disk full")
	mockLog.AssertMessageMatch(t, true, ldlog.Info, "client started")
}

func TestLoggersAdapter_RespectsMinLevel(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Error)
	logger := WrapLoggers(mockLog.Loggers)

	logger.Debug("debug")
	logger.Warn("warn")
	logger.Error("error")

	assert.Empty(t, mockLog.GetOutput(ldlog.Debug))
	assert.Empty(t, mockLog.GetOutput(ldlog.Warn))
	assert.Len(t, mockLog.GetOutput(ldlog.Error), 1)
}

func TestNewLoggersAdapter(t *testing.T) {
	logger := NewLoggersAdapter(LogLevelNone)
	// nothing is written at NONE, but calls must still be safe
	logger.Error("hidden %s", "message")
}

func TestNewLoggersAdapter_WritesOwnPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggersAdapterTo(&buf, LogLevelInfo)

	logger.Warn("flushing %d events", 2)
	logger.Debug("hidden")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[Courier] "), out)
	assert.Contains(t, out, "flushing 2 events")
	assert.NotContains(t, out, "LaunchDarkly")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "  flushing")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}
