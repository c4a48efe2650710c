package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_Prefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelDebug)

	logger.Warn("dropped %s", "rel")

	assert.Contains(t, buf.String(), "[hybridrag] ")
	assert.Contains(t, buf.String(), "[WARN] dropped rel")
}

func TestDefaultLogger_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelWarn)

	logger.Debug("a")
	logger.Info("b")
	assert.Empty(t, buf.String())

	logger.Error("c")
	assert.Contains(t, buf.String(), "[ERROR] c")
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "NONE", LogLevelNone.String())
	assert.Equal(t, "UNKNOWN(42)", LogLevel(42).String())
}

func TestSetDefaultLogger(t *testing.T) {
	orig := GetDefaultLogger()
	defer SetDefaultLogger(orig)

	var buf bytes.Buffer
	SetDefaultLogger(NewCustomLogger(&buf, LogLevelInfo))
	Info("hello %d", 1)
	assert.Contains(t, buf.String(), "hello 1")

	SetDefaultLogger(nil)
	assert.IsType(t, &NoOpLogger{}, GetDefaultLogger())
}

func TestOrDefault(t *testing.T) {
	custom := &NoOpLogger{}
	assert.Same(t, custom, OrDefault(custom))
	assert.Equal(t, GetDefaultLogger(), OrDefault(nil))
}
