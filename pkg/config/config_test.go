package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORYHUB_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Publish.Attempts)
	assert.Equal(t, time.Second, cfg.Publish.RetryDelay)
	assert.False(t, cfg.Catalog.OptimisticWrites)
	assert.ElementsMatch(t, []string{"NSFW", "18+"}, cfg.Catalog.SensitiveTags)
	assert.False(t, cfg.Blob.CloudinaryEnabled())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9000
jwt:
  secret: from-file
storage:
  backend: redis
catalog:
  optimistic_writes: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("STORYHUB_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.True(t, cfg.Catalog.OptimisticWrites)
	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("STORYHUB_JWT_SECRET", "test-secret")
	t.Setenv("STORYHUB_STORAGE_BACKEND", "s3")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("STORYHUB_JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
}
