package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIHandlerFormatsRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelInfo).With("target", "debian-12")

	logger.Info("starting box build", "step", "upgrade")
	logger.Debug("hidden")

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "INFO "), line)
	assert.Contains(t, line, "| starting box build")
	assert.Contains(t, line, "target=debian-12")
	assert.Contains(t, line, "step=upgrade")
	assert.NotContains(t, line, "hidden")
	assert.NotContains(t, line, "\x1b[", "buffers never get colour")
}

func TestJSONMode(t *testing.T) {
	var buf bytes.Buffer
	logger := New(ModeJSON, &buf, slog.LevelDebug)

	logger.Debug("executing", "command", "lxc-ls -1")

	assert.Contains(t, buf.String(), `"msg":"executing"`)
	assert.Contains(t, buf.String(), `"command":"lxc-ls -1"`)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel(" debug ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFor(true, true, slog.LevelInfo))
	assert.Equal(t, slog.LevelWarn, LevelFor(false, true, slog.LevelInfo))
	assert.Equal(t, slog.LevelError, LevelFor(false, false, slog.LevelError))
}
