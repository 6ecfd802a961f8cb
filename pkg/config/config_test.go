package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/marble/pkg/blob/memory"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "filesystem", cfg.Blob.Type)
	assert.Equal(t, "/var/lib/marble/blobs", cfg.Blob.Filesystem["path"])
	assert.Equal(t, "/var/lib/marble/marble.db", cfg.Database.Path)
	assert.Equal(t, int64(1<<30), cfg.WebDAV.MaxBodyBytes)
	assert.Equal(t, time.Hour, cfg.WebDAV.MaxLockTimeout)
	assert.False(t, cfg.WebDAV.AllowDepthInfinity)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
server:
  listen_address: "127.0.0.1:9090"
blob:
  type: badger
  badger:
    path: /data/blobs
database:
  path: /data/marble.db
webdav:
  max_body_bytes: 1048576
  max_lock_timeout: 10m
  allow_depth_infinity: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.ListenAddress)
	assert.Equal(t, "badger", cfg.Blob.Type)
	assert.Equal(t, "/data/blobs", cfg.Blob.Badger["path"])
	assert.Equal(t, "/data/marble.db", cfg.Database.Path)
	assert.Equal(t, int64(1048576), cfg.WebDAV.MaxBodyBytes)
	assert.Equal(t, 10*time.Minute, cfg.WebDAV.MaxLockTimeout)
	assert.True(t, cfg.WebDAV.AllowDepthInfinity)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "UnknownLogLevel",
			content: "logging:\n  level: verbose\n",
		},
		{
			name:    "UnknownBlobType",
			content: "blob:\n  type: gcs\n",
		},
		{
			name:    "BadListenAddress",
			content: "server:\n  listen_address: not-an-address\n",
		},
		{
			name:    "S3WithoutBucket",
			content: "blob:\n  type: s3\n",
		},
		{
			name:    "BadgerWithoutPath",
			content: "blob:\n  type: badger\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfigFile(t, "logging: [unclosed"))
	assert.Error(t, err)
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Validate(GetDefaultConfig()))
}

func TestCreateBlobStore(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		store, err := CreateBlobStore(context.Background(), &BlobConfig{Type: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &memory.MemoryBlobStore{}, store)
	})

	t.Run("Filesystem", func(t *testing.T) {
		store, err := CreateBlobStore(context.Background(), &BlobConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": t.TempDir()},
		})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("FilesystemMissingPath", func(t *testing.T) {
		_, err := CreateBlobStore(context.Background(), &BlobConfig{Type: "filesystem"})
		assert.Error(t, err)
	})

	t.Run("BadgerInMemory", func(t *testing.T) {
		store, err := CreateBlobStore(context.Background(), &BlobConfig{
			Type:   "badger",
			Badger: map[string]any{"in_memory": true},
		})
		require.NoError(t, err)
		require.NotNil(t, store)

		if closer, ok := store.(io.Closer); ok {
			t.Cleanup(func() { closer.Close() })
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := CreateBlobStore(context.Background(), &BlobConfig{Type: "tape"})
		assert.Error(t, err)
	})
}
