package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")

	require.NoError(t, Init(Config{Level: "debug", Output: "stderr", File: path}))
	t.Cleanup(func() { _ = Close() })

	l := Component("worker")
	l.Info().Str("post_id", "p1").Msg("saved post")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"worker"`)
	assert.Contains(t, string(data), `"post_id":"p1"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "chatty", Output: "stderr"}))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
