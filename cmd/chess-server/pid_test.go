package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chess.pid")

	cleanup, err := managePIDFile(path, true)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStalePIDFileIsReused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chess.pid")
	// Larger than any pid_max
	require.NoError(t, os.WriteFile(path, []byte("99999999\n"), 0o644))

	cleanup, err := managePIDFile(path, true)
	require.NoError(t, err)
	defer cleanup()
}

func TestCorruptPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chess.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o644))

	_, err := managePIDFile(path, true)
	assert.ErrorContains(t, err, "corrupted")
}
