package config

import (
	"github.com/spf13/viper"
)

var defaultCategoryNames = []string{"auth", "read", "token", "status"}

// SetDefaults registers the built-in configuration values on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Presence flags
	v.SetDefault("status.kinds.available", "60m")
	v.SetDefault("status.kinds.looking", "30m")

	// Admission control
	v.SetDefault("rate_limits.backend", "libsql")
	v.SetDefault("rate_limits.timeout", "250ms")
	v.SetDefault("rate_limits.failure_mode", "open")
	v.SetDefault("rate_limits.trusted_proxy_hops", 1)
	v.SetDefault("rate_limits.categories.auth.limit", 5)
	v.SetDefault("rate_limits.categories.auth.window", "60s")
	v.SetDefault("rate_limits.categories.read.limit", 120)
	v.SetDefault("rate_limits.categories.read.window", "60s")
	v.SetDefault("rate_limits.categories.token.limit", 20)
	v.SetDefault("rate_limits.categories.token.window", "60s")
	v.SetDefault("rate_limits.categories.status.limit", 30)
	v.SetDefault("rate_limits.categories.status.window", "60s")

	v.SetDefault("redis.addrs", []string{"localhost:6379"})
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("badger.path", DefaultBadgerPath())
	v.SetDefault("badger.in_memory", false)

	// Realtime provider (unset means synthetic reads, no tokens)
	v.SetDefault("provider.url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.api_secret", "")
	v.SetDefault("provider.timeout", "5s")
	v.SetDefault("provider.server_url", "")

	// Rooms
	v.SetDefault("rooms.default_type", "pulse")
	v.SetDefault("rooms.token_ttl", "6h")
	v.SetDefault("rooms.synthetic_seed", 0)
	v.SetDefault("rooms.list_failure", "open")
	v.SetDefault("rooms.types.pulse.max_participants", 400)
	v.SetDefault("rooms.types.pulse.empty_timeout", "5m")
	v.SetDefault("rooms.types.stage.max_participants", 1000)
	v.SetDefault("rooms.types.stage.empty_timeout", "10m")
	v.SetDefault("rooms.types.stage.publish_roles", []string{"host", "moderator", "admin"})
	v.SetDefault("rooms.catalog", []map[string]any{
		{"name": "lobby-1", "display_name": "Main Lobby", "theme": "lobby", "type": "pulse"},
		{"name": "night-owls", "display_name": "Night Owls", "theme": "late-night", "type": "pulse"},
		{"name": "study-hall", "display_name": "Study Hall", "theme": "focus", "type": "pulse"},
	})

	// Identity
	v.SetDefault("identity.jwt_secret", "")
	v.SetDefault("identity.issuer", "")
	v.SetDefault("identity.audience", "")
	v.SetDefault("identity.leeway", "30s")
	v.SetDefault("identity.roles_file", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}
