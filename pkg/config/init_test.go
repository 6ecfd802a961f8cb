package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = InitConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	again, err := InitConfig(true)
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestInitConfigToPath(t *testing.T) {
	t.Run("CreatesParentDirectories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "marble.yaml")

		require.NoError(t, InitConfigToPath(path, false))
		require.FileExists(t, path)
	})

	t.Run("RefusesExistingFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("existing"), 0o644))

		err := InitConfigToPath(path, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("ForceOverwrites", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("existing"), 0o644))

		require.NoError(t, InitConfigToPath(path, true))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "# Marble Configuration File")
	})
}

func TestGenerateYAMLWithComments(t *testing.T) {
	out, err := generateYAMLWithComments(GetDefaultConfig())
	require.NoError(t, err)

	for _, section := range []string{"logging:", "server:", "blob:", "database:", "webdav:"} {
		assert.Contains(t, out, section)
	}

	assert.Contains(t, out, "#")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "/var/lib/marble/blobs")
	assert.Contains(t, out, "5m0s")
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}
