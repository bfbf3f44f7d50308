package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("GERALD_HOME", "")
	os.Unsetenv("GERALD_HOME")

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".gerald"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".gerald", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".gerald", "logs"), paths.Logs)
	assert.Equal(t, filepath.Join(home, ".gerald", "sounds"), paths.Sounds)
}

func TestResolvePaths_HomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("GERALD_HOME", base)

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)
}

func TestEnsureDirs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "gerald-home")
	t.Setenv("GERALD_HOME", base)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Logs, paths.Sounds} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestEnsureDirs_Idempotent(t *testing.T) {
	t.Setenv("GERALD_HOME", t.TempDir())

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	assert.NoError(t, paths.EnsureDirs())
}
