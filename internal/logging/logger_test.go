package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mapd/internal/config"
)

func TestNew_CreatesLogDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Data = t.TempDir()

	logger, closer, err := New(cfg)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Msg("server started")

	dir := filepath.Join(cfg.Data, config.LogDirName)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "server started")
	assert.Contains(t, string(data), `"service":"mapd-server"`)
}

func TestNew_BufferedWritesFlushOnClose(t *testing.T) {
	cfg := config.Default()
	cfg.Data = t.TempDir()
	cfg.FlushLog = false

	logger, closer, err := New(cfg)
	require.NoError(t, err)

	logger.Info().Msg("buffered line")

	path := filepath.Join(cfg.Data, config.LogDirName, logFileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "buffered line")

	require.NoError(t, closer.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "buffered line")
}

func TestNew_LevelFiltering(t *testing.T) {
	cfg := config.Default()
	cfg.Data = t.TempDir()
	cfg.LogLevel = "warn"

	logger, closer, err := New(cfg)
	require.NoError(t, err)

	logger.Info().Msg("suppressed line")
	logger.Warn().Msg("kept line")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(cfg.Data, config.LogDirName, logFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed line")
	assert.Contains(t, string(data), "kept line")
}

func TestCloser_NilSafe(t *testing.T) {
	var closer *Closer
	assert.NoError(t, closer.Close())
}
