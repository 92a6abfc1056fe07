package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsNeedSecret(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("LIAPTUI_JWT_SECRET", "s3cret")
	t.Setenv("LIAPTUI_STORAGE_DRIVER", "memory")
	t.Setenv("LIAPTUI_QUEUE_MAXSIZE", "12")
	t.Setenv("LIAPTUI_CONNECTION_STALEAFTER", "45s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Jwt.Secret)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 12, cfg.Queue.MaxSize)
	assert.Equal(t, 45*time.Second, cfg.Connection.StaleAfter)
	assert.Equal(t, 10*time.Minute, cfg.Connection.DisconnectTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Queue.MessageMaxAge)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
http:
  port: 9090
storage:
  driver: memory
jwt:
  secret: from-file
  ttl: 2h
queue:
  maxSize: 20
sweeper:
  interval: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "from-file", cfg.Jwt.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Jwt.TTL)
	assert.Equal(t, 20, cfg.Queue.MaxSize)
	assert.Equal(t, 15*time.Second, cfg.Sweeper.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_UnknownDriver(t *testing.T) {
	t.Setenv("LIAPTUI_JWT_SECRET", "x")
	t.Setenv("LIAPTUI_STORAGE_DRIVER", "postgres")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
