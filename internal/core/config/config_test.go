package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every configuration key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "SERVER_PORT", "STORE_BACKEND", "REDIS_URL",
		"STRICT_TRANSITIONS", "RETRY_MAX_RETRIES", "RETRY_BASE_DELAY",
		"NOTIFY_WEBHOOK_URL", "NOTIFY_TIMEOUT", "STREAM_MAX_DURATION", "STREAM_HEARTBEAT",
	} {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

// TestLoad_Defaults verifies that default values are used when env vars are missing.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.True(t, cfg.Orders.StrictTransitions)
	assert.Equal(t, uint64(3), cfg.Orders.RetryMaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Orders.RetryBaseDelay)
	assert.Empty(t, cfg.Notify.WebhookURL)
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Stream.MaxDuration)
	assert.Equal(t, 15*time.Second, cfg.Stream.Heartbeat)
}

// TestLoad_EnvVars verifies that environment variables override defaults.
func TestLoad_EnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STRICT_TRANSITIONS", "false")
	t.Setenv("RETRY_MAX_RETRIES", "0")
	t.Setenv("RETRY_BASE_DELAY", "200ms")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.example.com/orders")
	t.Setenv("STREAM_HEARTBEAT", "5s")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
	assert.False(t, cfg.Orders.StrictTransitions)
	assert.Zero(t, cfg.Orders.RetryMaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Orders.RetryBaseDelay)
	assert.Equal(t, "https://hooks.example.com/orders", cfg.Notify.WebhookURL)
	assert.Equal(t, 5*time.Second, cfg.Stream.Heartbeat)
}

// TestLoad_File verifies that values are loaded from a .env file.
func TestLoad_File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := []byte(`
APP_ENV=staging
LOG_LEVEL=warn
SERVER_PORT=7070
STREAM_MAX_DURATION=10m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), content, 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7070, cfg.ServerPort)
	assert.Equal(t, 10*time.Minute, cfg.Stream.MaxDuration)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Run("RedisWithoutURL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "redis")

		cfg, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "REDIS_URL")
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "firestore")

		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STORE_BACKEND")
	})

	t.Run("ZeroHeartbeat", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STREAM_HEARTBEAT", "0s")

		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STREAM_HEARTBEAT")
	})
}

func TestValidateRequired(t *testing.T) {
	type withRequired struct {
		Name string `mapstructure:"NAME" required:"true"`
	}

	err := validateRequired(&withRequired{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required configuration: NAME")

	assert.NoError(t, validateRequired(&withRequired{Name: "x"}))
}

func TestIsZero(t *testing.T) {
	assert.True(t, isZero(reflect.ValueOf("")))
	assert.True(t, isZero(reflect.ValueOf(0)))
	assert.True(t, isZero(reflect.ValueOf(uint64(0))))
	assert.True(t, isZero(reflect.ValueOf(0.0)))
	assert.True(t, isZero(reflect.ValueOf(false)))
	assert.True(t, isZero(reflect.ValueOf([]string{})))
	assert.False(t, isZero(reflect.ValueOf(time.Second)))
	assert.False(t, isZero(reflect.ValueOf("x")))
}
