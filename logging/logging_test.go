package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

// TestNew_FiltersByLevel verifies records below the level are dropped
func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("quiet")
	logger.Warn("loud", "url", "https://www.dhakapost.com/news/1")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=loud")
	assert.Contains(t, out, "url=https://www.dhakapost.com/news/1")
}

// TestSetup_WritesLogFile verifies records reach the log file and that the
// file is appended to across runs
func TestSetup_WritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scraper.log")

	logger, closeFn, err := Setup("info", path)
	require.NoError(t, err)
	logger.Info("first run")
	require.NoError(t, closeFn())

	logger, closeFn, err = Setup("info", path)
	require.NoError(t, err)
	logger.Info("second run")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")
	assert.Contains(t, string(data), "second run")
}

// TestSetup_NoFile verifies stdout-only logging
func TestSetup_NoFile(t *testing.T) {
	logger, closeFn, err := Setup("debug", "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closeFn())
}
