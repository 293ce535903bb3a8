package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Mirror.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Mirror.TTL)
	assert.Equal(t, "inline", cfg.Media.Driver)
	assert.Equal(t, "audio/webm", cfg.Media.MIMEType)
	assert.Contains(t, cfg.Images.AllowedHosts, "api.dicebear.com")
	assert.False(t, cfg.Social.Reconcile)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := []byte(`
server:
  port: 9090
mirror:
  driver: redis
  ttl: 30s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yml, 0o600))
	t.Setenv("FV_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Mirror.Driver)
	assert.Equal(t, 30*time.Second, cfg.Mirror.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("FV_DATABASE_DRIVER", "mysql")
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	cfg.Media.Driver = "s3"
	assert.Error(t, cfg.Validate())
	cfg.Media.S3Bucket = "voces"
	assert.NoError(t, cfg.Validate())
}
