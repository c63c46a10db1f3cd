package config

import (
	"time"
)

// Config represents the complete application configuration. Values are
// layered: built-in defaults, then the YAML config file, then ROOMGATE_*
// environment variables (a .env file is loaded first), then runtime overrides.
type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Store      StoreConfig     `mapstructure:"store"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
	Health     HealthConfig    `mapstructure:"health"`
	Debug      DebugConfig     `mapstructure:"debug"`
	Status     StatusConfig    `mapstructure:"status"`
	RateLimits RateLimitConfig `mapstructure:"rate_limits"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Badger     BadgerConfig    `mapstructure:"badger"`
	Provider   ProviderConfig  `mapstructure:"provider"`
	Rooms      RoomsConfig     `mapstructure:"rooms"`
	Identity   IdentityConfig  `mapstructure:"identity"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// StatusConfig configures the presence flag kinds and their default TTLs.
type StatusConfig struct {
	Kinds map[string]time.Duration `mapstructure:"kinds"`
}

// RateLimitConfig configures admission control.
type RateLimitConfig struct {
	// Backend selects the counter store: redis, libsql, badger or memory.
	Backend string `mapstructure:"backend"`

	// Timeout bounds each counter store call.
	Timeout time.Duration `mapstructure:"timeout"`

	// FailureMode is "open" (admit on store failure) or "closed".
	FailureMode string `mapstructure:"failure_mode"`

	// TrustedProxyHops is the number of reverse proxies appending to
	// X-Forwarded-For. Zero ignores forwarding headers.
	TrustedProxyHops int `mapstructure:"trusted_proxy_hops"`

	Categories map[string]CategoryLimit `mapstructure:"categories"`
}

// CategoryLimit is the quota of one rate limit category.
type CategoryLimit struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// RedisConfig contains the shared counter store connection.
type RedisConfig struct {
	Addrs    []string `mapstructure:"addrs"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	DB       int      `mapstructure:"db"`
}

// BadgerConfig contains the embedded counter store location.
type BadgerConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// ProviderConfig contains realtime provider credentials. An empty URL, key
// or secret puts room reads into synthetic mode and disables token issuance.
type ProviderConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// ServerURL is returned to clients with each token. Defaults to URL.
	ServerURL string `mapstructure:"server_url"`
}

// RoomsConfig configures room types and the room catalog.
type RoomsConfig struct {
	DefaultType   string                    `mapstructure:"default_type"`
	TokenTTL      time.Duration             `mapstructure:"token_ttl"`
	SyntheticSeed uint64                    `mapstructure:"synthetic_seed"`
	ListFailure   string                    `mapstructure:"list_failure"`
	Types         map[string]RoomTypeConfig `mapstructure:"types"`
	Catalog       []RoomEntryConfig         `mapstructure:"catalog"`
}

// RoomTypeConfig holds the settings of one room type.
type RoomTypeConfig struct {
	MaxParticipants int           `mapstructure:"max_participants"`
	EmptyTimeout    time.Duration `mapstructure:"empty_timeout"`
	PublishRoles    []string      `mapstructure:"publish_roles"`
}

// RoomEntryConfig is one known room definition.
type RoomEntryConfig struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"display_name"`
	Theme       string `mapstructure:"theme"`
	Type        string `mapstructure:"type"`
}

// IdentityConfig configures bearer token verification and the role table.
type IdentityConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	Leeway    time.Duration `mapstructure:"leeway"`
	RolesFile string        `mapstructure:"roles_file"`
	Roles     []RoleBinding `mapstructure:"roles"`
}

// RoleBinding assigns a role to a subject id or email. A list is used
// instead of a map because config keys are dot-delimited.
type RoleBinding struct {
	Subject string `mapstructure:"subject"`
	Role    string `mapstructure:"role"`
}
