package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okrtrack/internal/config"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, Level("debug"))
	assert.Equal(t, logrus.WarnLevel, Level("warn"))
	assert.Equal(t, logrus.ErrorLevel, Level("error"))
	assert.Equal(t, logrus.PanicLevel, Level("silent"))
	assert.Equal(t, logrus.InfoLevel, Level("nonsense"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LogOptions{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.WithField("okr_id", "okr-1").Info("check-in added")
	logger.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "check-in added", entry["message"])
	assert.Equal(t, "okr-1", entry["okr_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "okrtrack.log")
	var buf bytes.Buffer
	logger, closer, err := New(config.LogOptions{Level: "info", Format: "text", Path: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)

	logger.Info("exported")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "exported")
	assert.Contains(t, buf.String(), "exported")
}
