// Package config provides centralized configuration management for roomgate.
// Configuration is layered:
// Layer 1: built-in defaults (SetDefaults)
// Layer 2: YAML config file (explicit path or discovered in XDG config paths)
// Layer 3: ROOMGATE_* environment variables (.env honored) and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName names config directories and the default database file.
	AppName = "roomgate"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ROOMGATE_"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex

	configFile string
	envFile    = ".env"
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the YAML config file used by Load. An empty path restores
// discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// SetEnvFile sets the dotenv file loaded before environment overrides are
// read. An empty path disables dotenv loading.
func SetEnvFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	envFile = strings.TrimSpace(path)
}

// Load builds the configuration from defaults, the config file, environment
// variables and runtime overrides, in increasing order of precedence.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.RLock()
	explicitFile, dotenv := configFile, envFile
	configMu.RUnlock()

	if err := loadDotEnv(dotenv); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	if err := readConfigFile(v, explicitFile); err != nil {
		return nil, err
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	allOverrides := []map[string]any{envOverrides}
	allOverrides = append(allOverrides, runtimeOverrides...)
	for _, overrides := range allOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to merge config overrides: %w", err)
		}
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if strings.TrimSpace(cfg.Provider.ServerURL) == "" {
		cfg.Provider.ServerURL = cfg.Provider.URL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", explicit, err)
		}
		return nil
	}

	for _, candidate := range getUserConfigPaths() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		v.SetConfigFile(candidate)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

// ConfigFileUsed returns the config file Load would read, or "" when none
// is found.
func ConfigFileUsed() string {
	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()
	if explicit != "" {
		return explicit
	}
	for _, candidate := range getUserConfigPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getUserConfigPaths returns the config files to check, most specific first.
func getUserConfigPaths() []string {
	paths := []string{filepath.Join("config", AppName+".yaml")}
	return append(paths, gfconfig.GetAppConfigPaths(AppName)...)
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix

	specs := []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		{Name: prefix + "RATE_LIMIT_BACKEND", Path: []string{"rate_limits", "backend"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_TIMEOUT", Path: []string{"rate_limits", "timeout"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_FAILURE_MODE", Path: []string{"rate_limits", "failure_mode"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_TRUSTED_PROXY_HOPS", Path: []string{"rate_limits", "trusted_proxy_hops"}, Type: EnvInt},

		{Name: prefix + "REDIS_ADDRS", Path: []string{"redis", "addrs"}, Type: EnvString},
		{Name: prefix + "REDIS_USERNAME", Path: []string{"redis", "username"}, Type: EnvString},
		{Name: prefix + "REDIS_PASSWORD", Path: []string{"redis", "password"}, Type: EnvString},
		{Name: prefix + "REDIS_DB", Path: []string{"redis", "db"}, Type: EnvInt},

		{Name: prefix + "BADGER_PATH", Path: []string{"badger", "path"}, Type: EnvString},
		{Name: prefix + "BADGER_IN_MEMORY", Path: []string{"badger", "in_memory"}, Type: EnvBool},

		{Name: prefix + "PROVIDER_URL", Path: []string{"provider", "url"}, Type: EnvString},
		{Name: prefix + "PROVIDER_API_KEY", Path: []string{"provider", "api_key"}, Type: EnvString},
		{Name: prefix + "PROVIDER_API_SECRET", Path: []string{"provider", "api_secret"}, Type: EnvString},
		{Name: prefix + "PROVIDER_TIMEOUT", Path: []string{"provider", "timeout"}, Type: EnvString},
		{Name: prefix + "PROVIDER_SERVER_URL", Path: []string{"provider", "server_url"}, Type: EnvString},

		{Name: prefix + "ROOMS_DEFAULT_TYPE", Path: []string{"rooms", "default_type"}, Type: EnvString},
		{Name: prefix + "ROOMS_TOKEN_TTL", Path: []string{"rooms", "token_ttl"}, Type: EnvString},
		{Name: prefix + "ROOMS_SYNTHETIC_SEED", Path: []string{"rooms", "synthetic_seed"}, Type: EnvInt},
		{Name: prefix + "ROOMS_LIST_FAILURE", Path: []string{"rooms", "list_failure"}, Type: EnvString},

		{Name: prefix + "JWT_SECRET", Path: []string{"identity", "jwt_secret"}, Type: EnvString},
		{Name: prefix + "JWT_ISSUER", Path: []string{"identity", "issuer"}, Type: EnvString},
		{Name: prefix + "JWT_AUDIENCE", Path: []string{"identity", "audience"}, Type: EnvString},
		{Name: prefix + "ROLES_FILE", Path: []string{"identity", "roles_file"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},
	}

	for _, category := range defaultCategoryNames {
		upper := strings.ToUpper(category)
		specs = append(specs,
			EnvVarSpec{Name: prefix + "RATE_LIMIT_" + upper + "_LIMIT", Path: []string{"rate_limits", "categories", category, "limit"}, Type: EnvInt},
			EnvVarSpec{Name: prefix + "RATE_LIMIT_" + upper + "_WINDOW", Path: []string{"rate_limits", "categories", category, "window"}, Type: EnvString},
		)
	}
	return specs
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

// DefaultBadgerPath returns the XDG-compliant directory for the embedded
// counter store.
func DefaultBadgerPath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + "-counters"
	}
	return filepath.Join(dataDir, "counters")
}
