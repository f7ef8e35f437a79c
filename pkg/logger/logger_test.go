package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrosense/pkg/logger"
)

func TestLevelFiltering(t *testing.T) {
	require.NoError(t, logger.Init(logger.Options{Level: "warn"}))
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Debugf("debug %d", 1)
	logger.Printf("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "WARN: warn 3")
	assert.Contains(t, out, "ERROR: error 4")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	require.NoError(t, logger.Init(logger.Options{Level: "verbose"}))
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Debugf("hidden")
	logger.Println("Dashboard:", "visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "Dashboard: visible")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agrosense.log")
	require.NoError(t, logger.Init(logger.Options{Level: "info", File: path}))
	logger.Printf("MQTT Client: connected")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "MQTT Client: connected")
}
