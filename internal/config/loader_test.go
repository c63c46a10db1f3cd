package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/core"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	SetConfigFile("")
	SetEnvFile("")
	t.Cleanup(func() {
		SetConfigFile("")
		SetEnvFile(".env")
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, DefaultStorePath(), cfg.Store.Path)

		// Verify presence defaults
		assert.Equal(t, map[core.StatusKind]time.Duration{
			core.StatusAvailable: time.Hour,
			core.StatusLooking:   30 * time.Minute,
		}, cfg.Status.KindTTLs())

		// Verify admission defaults
		assert.Equal(t, "libsql", cfg.RateLimits.Backend)
		assert.Equal(t, 250*time.Millisecond, cfg.RateLimits.Timeout)
		assert.Equal(t, core.FailOpen, cfg.RateLimits.Policy())
		table := cfg.RateLimits.Table()
		assert.Equal(t, core.RateLimit{Limit: 5, Window: time.Minute}, table[core.CategoryAuth])
		assert.Equal(t, core.RateLimit{Limit: 120, Window: time.Minute}, table[core.CategoryRead])
		assert.Equal(t, core.RateLimit{Limit: 20, Window: time.Minute}, table[core.CategoryToken])
		assert.Equal(t, core.RateLimit{Limit: 30, Window: time.Minute}, table[core.CategoryStatus])

		// Verify room defaults
		assert.Equal(t, "pulse", cfg.Rooms.DefaultType)
		assert.Equal(t, 6*time.Hour, cfg.Rooms.TokenTTL)
		assert.Equal(t, 400, cfg.Rooms.Types["pulse"].MaxParticipants)
		assert.Equal(t, []string{"host", "moderator", "admin"}, cfg.Rooms.Types["stage"].PublishRoles)
		require.Len(t, cfg.Rooms.Catalog, 3)
		assert.Equal(t, "lobby-1", cfg.Rooms.Catalog[0].Name)
		assert.Equal(t, "Main Lobby", cfg.Rooms.Catalog[0].DisplayName)

		// Provider is unset by default
		assert.Empty(t, cfg.Provider.URL)
		assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)

		// Verify metrics defaults
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)

		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("ROOMGATE_PORT", "3000")
		t.Setenv("ROOMGATE_LOG_LEVEL", "warn")
		t.Setenv("ROOMGATE_METRICS_ENABLED", "false")
		t.Setenv("ROOMGATE_RATE_LIMIT_TOKEN_LIMIT", "3")
		t.Setenv("ROOMGATE_RATE_LIMIT_TOKEN_WINDOW", "10s")
		t.Setenv("ROOMGATE_REDIS_ADDRS", "redis-a:6379,redis-b:6379")
		t.Setenv("ROOMGATE_PROVIDER_URL", "wss://rtc.example")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, core.RateLimit{Limit: 3, Window: 10 * time.Second}, cfg.RateLimits.Table()[core.CategoryToken])
		assert.Equal(t, core.RateLimit{Limit: 5, Window: time.Minute}, cfg.RateLimits.Table()[core.CategoryAuth])
		assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.Redis.Addrs)
		assert.Equal(t, "wss://rtc.example", cfg.Provider.ServerURL)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		t.Setenv("ROOMGATE_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)

		// Runtime override should take precedence over env var
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		isolate(t)
		t.Setenv("ROOMGATE_PORT", "7000")

		path := filepath.Join(t.TempDir(), "roomgate.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 6000
rate_limits:
  backend: redis
  failure_mode: closed
status:
  kinds:
    streaming: 15m
rooms:
  catalog:
    - name: keynote
      display_name: Keynote
      type: stage
identity:
  roles:
    - subject: ada@example.com
      role: host
`), 0o600))
		SetConfigFile(path)

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "redis", cfg.RateLimits.Backend)
		assert.Equal(t, core.FailClosed, cfg.RateLimits.Policy())
		assert.Equal(t, 15*time.Minute, cfg.Status.KindTTLs()["streaming"])
		assert.Equal(t, time.Hour, cfg.Status.KindTTLs()[core.StatusAvailable])
		require.Len(t, cfg.Rooms.Catalog, 1)
		assert.Equal(t, "stage", cfg.Rooms.Catalog[0].Type)
		require.Len(t, cfg.Identity.Roles, 1)
		assert.Equal(t, RoleBinding{Subject: "ada@example.com", Role: "host"}, cfg.Identity.Roles[0])
	})

	t.Run("DotEnv", func(t *testing.T) {
		isolate(t)
		envPath := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envPath, []byte("ROOMGATE_JWT_ISSUER=https://id.example\n"), 0o600))
		SetEnvFile(envPath)
		t.Cleanup(func() { _ = os.Unsetenv("ROOMGATE_JWT_ISSUER") })

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://id.example", cfg.Identity.Issuer)
	})

	t.Run("MissingConfigFile", func(t *testing.T) {
		isolate(t)
		SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := Load(ctx)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	isolate(t)

	_, err := Load(context.Background(), map[string]any{
		"rate_limits": map[string]any{"backend": "etcd"},
	})
	require.ErrorContains(t, err, "rate_limits.backend")

	_, err = Load(context.Background(), map[string]any{
		"rooms": map[string]any{
			"catalog": []map[string]any{{"name": "bad name", "type": "pulse"}},
		},
	})
	require.ErrorContains(t, err, "rooms.catalog[0]")

	_, err = Load(context.Background(), map[string]any{
		"identity": map[string]any{"roles": []map[string]any{{"subject": "ada", "role": "overlord"}}},
	})
	require.ErrorContains(t, err, "identity.roles[0]")
}

func TestGetConfig(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestEnvSpecs(t *testing.T) {
	specs := getEnvSpecs()
	assert.NotEmpty(t, specs)

	envVarNames := make(map[string]bool)
	for _, spec := range specs {
		envVarNames[spec.Name] = true
	}

	assert.True(t, envVarNames["ROOMGATE_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["ROOMGATE_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["ROOMGATE_PROVIDER_API_SECRET"], "PROVIDER_API_SECRET env var must be mapped")
	assert.True(t, envVarNames["ROOMGATE_RATE_LIMIT_AUTH_LIMIT"], "per-category limits must be mapped")
	assert.True(t, envVarNames["ROOMGATE_DB_PATH"], "DB_PATH env var must be mapped")
}
