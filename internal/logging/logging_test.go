package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(&buf, Options{Level: "warn"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("upload failed", "number", "TRX-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "upload failed")
	assert.Contains(t, out, "number=TRX-1")
}

func TestNew_FileGetsJSON(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "kasir.log")
	logger, closer, err := New(&buf, Options{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.With("device", "till-1").Info("sync finished", "synced", 3)
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "sync finished", rec["msg"])
	assert.Equal(t, "till-1", rec["device"])
	assert.EqualValues(t, 3, rec["synced"])
	assert.Contains(t, buf.String(), "sync finished", "console still written")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(&bytes.Buffer{}, Options{Level: "loud"})
	assert.Error(t, err)
}
