package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roomgate/roomgate/internal/config"
	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/counter"
	"github.com/roomgate/roomgate/internal/core/provider"
	"github.com/roomgate/roomgate/internal/core/ratelimit"
	"github.com/roomgate/roomgate/internal/core/rooms"
	"github.com/roomgate/roomgate/internal/core/status"
	"github.com/roomgate/roomgate/internal/core/store"
	"github.com/roomgate/roomgate/internal/core/token"
	"github.com/roomgate/roomgate/internal/identity"
	"github.com/roomgate/roomgate/internal/observability"
)

// components holds the services built from one configuration.
type components struct {
	cfg       *config.Config
	store     *store.Store
	counters  counter.Store
	limiter   *ratelimit.Limiter
	rooms     *rooms.Service
	status    *status.Engine
	authority *identity.Authority
	identity  *identity.Provider

	closers []func() error
}

// buildComponents opens the store and wires every service on top of it.
// Services whose configuration is missing are left in their unconfigured
// mode rather than failing: rooms fall back to synthetic reads and
// authenticated routes answer 503.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{cfg: cfg}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.store = db
	c.closers = append(c.closers, db.Close)

	counters, closeCounters, err := openCounters(ctx, cfg, db)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.counters = counters
	if closeCounters != nil {
		c.closers = append(c.closers, closeCounters)
	}

	c.limiter = newLimiter(cfg.RateLimits, counters)
	c.status = status.NewEngine(db, cfg.Status.KindTTLs(), nil)

	c.rooms, err = newRoomsService(cfg, nil)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.authority, c.identity, err = newIdentity(cfg.Identity, db)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// loadComponents loads configuration and builds components for a CLI command.
func loadComponents(cmd *cobra.Command) (*components, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return buildComponents(cmd.Context(), cfg)
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// openCounters selects the counter store named by rate_limits.backend. The
// returned close func is nil when the store is owned elsewhere.
func openCounters(ctx context.Context, cfg *config.Config, db *store.Store) (counter.Store, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.RateLimits.Backend)) {
	case counter.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := counter.NewRedisStore(client)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			// The limiter degrades per request; an unreachable redis at boot
			// is not fatal.
			logWarn("Redis counter store unreachable", zap.Strings("addrs", cfg.Redis.Addrs), zap.Error(err))
		}
		return rs, rs.Close, nil
	case counter.BackendBadger:
		bs, err := counter.OpenBadger(cfg.Badger.Path, cfg.Badger.InMemory)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs.Close, nil
	case counter.BackendMemory:
		return counter.NewMemoryStore(), nil, nil
	default:
		if db == nil {
			return nil, nil, &core.ConfigError{Component: "libsql counter store"}
		}
		return db, nil, nil
	}
}

func newLimiter(cfg config.RateLimitConfig, counters counter.Store) *ratelimit.Limiter {
	table := cfg.Table()
	if len(table) == 0 {
		table = ratelimit.DefaultCategories
	}
	return &ratelimit.Limiter{
		Store:        counters,
		Categories:   table,
		Timeout:      cfg.Timeout,
		OnStoreError: cfg.Policy(),
	}
}

// newRoomsService builds the room service. Without provider credentials the
// service runs in synthetic mode.
func newRoomsService(cfg *config.Config, httpClient *http.Client) (*rooms.Service, error) {
	opts := rooms.Options{
		DefaultType:   cfg.Rooms.DefaultType,
		Timeout:       cfg.Provider.Timeout,
		SyntheticSeed: cfg.Rooms.SyntheticSeed,
		OnListError:   config.ParsePolicy(cfg.Rooms.ListFailure),
	}

	if len(cfg.Rooms.Types) > 0 {
		opts.Types = make(map[string]rooms.RoomType, len(cfg.Rooms.Types))
		for name, rt := range cfg.Rooms.Types {
			roles := make([]core.Role, 0, len(rt.PublishRoles))
			for _, raw := range rt.PublishRoles {
				role, err := core.ParseRole(raw)
				if err != nil {
					return nil, fmt.Errorf("rooms.types.%s: %w", name, err)
				}
				roles = append(roles, role)
			}
			opts.Types[name] = rooms.RoomType{
				MaxParticipants: rt.MaxParticipants,
				EmptyTimeout:    rt.EmptyTimeout,
				PublishRoles:    roles,
			}
		}
	}

	if len(cfg.Rooms.Catalog) > 0 {
		opts.Catalog = lo.Map(cfg.Rooms.Catalog, func(e config.RoomEntryConfig, _ int) rooms.CatalogEntry {
			return rooms.CatalogEntry{Name: e.Name, DisplayName: e.DisplayName, Theme: e.Theme, Type: e.Type}
		})
	}

	pcfg := provider.Config{
		URL:       cfg.Provider.URL,
		APIKey:    cfg.Provider.APIKey,
		APISecret: cfg.Provider.APISecret,
		Timeout:   cfg.Provider.Timeout,
	}
	if pcfg.Configured() {
		client, err := provider.NewClient(pcfg, httpClient)
		if err != nil {
			return nil, err
		}
		opts.Provider = client
		opts.Signer = &token.Minter{
			APIKey:    cfg.Provider.APIKey,
			APISecret: cfg.Provider.APISecret,
			TTL:       cfg.Rooms.TokenTTL,
		}
	} else {
		logWarn("Realtime provider not configured; room reads are synthetic and token issuance is disabled")
	}

	return rooms.NewService(opts), nil
}

// newIdentity builds the bearer token authority and principal provider. A
// missing JWT secret returns nil values and no error.
func newIdentity(cfg config.IdentityConfig, profiles identity.ProfileStore) (*identity.Authority, *identity.Provider, error) {
	authority, err := identity.NewAuthority(cfg.JWTSecret, cfg.Issuer, cfg.Audience)
	if err != nil {
		if core.IsConfig(err) {
			logWarn("Identity secret not configured; authenticated routes are unavailable")
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if cfg.Leeway > 0 {
		authority.Leeway = cfg.Leeway
	}

	overrides := make(map[string]string, len(cfg.Roles))
	for _, binding := range cfg.Roles {
		overrides[binding.Subject] = binding.Role
	}
	roles, err := identity.LoadRoleTable(cfg.RolesFile, overrides)
	if err != nil {
		return nil, nil, err
	}

	return authority, &identity.Provider{Authority: authority, Profiles: profiles, Roles: roles}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func logWarn(msg string, fields ...zap.Field) {
	switch {
	case observability.ServerLogger != nil:
		observability.ServerLogger.Warn(msg, fields...)
	case observability.CLILogger != nil:
		observability.CLILogger.Warn(msg, fields...)
	}
}

func sortedCategories(table map[core.Category]core.RateLimit) []core.Category {
	categories := lo.Keys(table)
	slices.Sort(categories)
	return categories
}
