package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_KeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test")
	l.SetOutput(&buf)

	l.Info("attempt finished", "tag", "full_r0", "found", true)

	out := buf.String()
	assert.Contains(t, out, "[test] ")
	assert.Contains(t, out, "[INFO] attempt finished tag=full_r0 found=true")
}

func TestLogger_OddKeyValuesIgnoresDangling(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test")
	l.SetOutput(&buf)

	l.Warn("odd", "a", 1, "b")

	assert.Contains(t, buf.String(), "[WARN] odd a=1\n")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test")
	l.SetOutput(&buf)

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	l.Debug("shown")
	assert.Contains(t, buf.String(), "[DEBUG] shown")

	buf.Reset()
	l.SetLevel(LevelError)
	l.Warn("hidden")
	l.Error("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[ERROR] shown")
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("root")
	l.SetOutput(&buf)

	l.Named("search").Info("hello")

	assert.Contains(t, buf.String(), "[search] ")
}

func TestLogger_NamedFollowsParentLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("root")
	l.SetOutput(&buf)
	child := l.Named("search")

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	child.Debug("shown")
	assert.Contains(t, buf.String(), "[search] ")
	assert.Contains(t, buf.String(), "[DEBUG] shown")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("dropped", "k", "v")
	})

	var nilLogger *Logger
	assert.NotPanics(t, func() {
		nilLogger.Info("dropped")
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
