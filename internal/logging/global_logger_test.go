package logging

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFormatter_Format(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2026, 10, 17, 9, 14, 4, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "request served\n",
		Data: log.Fields{
			"request_id": "a1b2c3d4",
			"status":     200,
			"path":       "/api/v1/query",
		},
	}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2026-10-17 09:14:04] [a1b2c3d4] [warn ] request served | path=/api/v1/query, status=200\n", string(out))
}

func TestLogFormatter_CallerAndMissingRequestID(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		Level:   log.InfoLevel,
		Message: "ready",
		Data:    log.Fields{},
		Caller:  &runtime.Frame{File: "/src/internal/api/server.go", Line: 88},
	}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2026-10-17 09:00:00] [--------] [info ] [server.go:88] ready\n", string(out))
}

func TestConfigureLogOutput_ToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ConfigureLogOutput(OutputOptions{ToFile: true, Dir: dir, MaxSizeMB: 1}))
	t.Cleanup(func() { _ = ConfigureLogOutput(OutputOptions{}) })

	log.Info("written to file")

	data, err := os.ReadFile(filepath.Join(dir, "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "sk-s...7890", MaskSecret("sk-secret1234567890"))
}
