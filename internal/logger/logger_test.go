package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.NoError(t, logger.Close())
	})

	t.Run("create logger with file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "toolwire.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		logger.Info().Str("endpoint", "ws://localhost:8000/ws").Msg("connected")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "connected")
		assert.Contains(t, string(data), "ws://localhost:8000/ws")
	})

	t.Run("redacts keys written to file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "toolwire.log")

		logger, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)
		assert.NotNil(t, logger.redactor)

		logger.Info().Msg("using key sk-test123456789abcdefghijklmnop")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "sk-test123456789abcdefghijklmnop")
		assert.Contains(t, string(data), "[REDACTED]")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})

	t.Run("installs global logger", func(t *testing.T) {
		logger, err := New(Config{Level: "error"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.ErrorLevel, log.Logger.GetLevel())
		assert.NoError(t, logger.Close())
	})
}

func TestComponent(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "toolwire.log")
	logger, err := New(Config{Level: "debug", File: logFile})
	require.NoError(t, err)

	child := logger.Component("socket")
	child.Debug().Msg("dial")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"socket"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
	assert.Empty(t, cfg.File)
}
