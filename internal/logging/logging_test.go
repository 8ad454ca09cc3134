package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Options{Level: "debug", Dir: dir})
	require.NoError(t, err)

	logger.Info("session started")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(filepath.Join(dir, "surasura.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "session started")
}

func TestNewRejectsBadLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "shout"})
	assert.Error(t, err)
}

func TestNewWithoutDirFallsBackToConsole(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
