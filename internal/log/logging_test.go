package log_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/usbd/internal/log"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelTrace, log.ParseLevel("trace"))
	assert.Equal(t, slog.LevelDebug, log.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, log.ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, log.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("bogus"))
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbd.log")

	logger, closers, err := log.SetupLogger("trace", path)
	require.NoError(t, err)
	logger.Log(context.Background(), log.LevelTrace, "transfer", "ep", 0x81)
	logger.Info("configured")
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=TRACE")
	assert.Contains(t, string(data), "msg=transfer")
	assert.Contains(t, string(data), "msg=configured")
}

func TestSetupLoggerBadFile(t *testing.T) {
	_, _, err := log.SetupLogger("info", filepath.Join(t.TempDir(), "no", "such", "dir", "x.log"))
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { log.Discard().Error("dropped") })
}
