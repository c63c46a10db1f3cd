package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roomgate/roomgate/internal/core"
)

var validate = validator.New()

// Validate reports every invalid setting in c.
func (c *Config) Validate() error {
	var errs []error

	check := func(field string, value any, tag string) {
		if err := validate.Var(value, tag); err != nil {
			errs = append(errs, fmt.Errorf("%s: must satisfy %q (got %v)", field, tag, value))
		}
	}

	check("server.port", c.Server.Port, "gte=0,lte=65535")
	check("rate_limits.backend", strings.ToLower(c.RateLimits.Backend), "oneof=redis libsql badger memory")
	check("rate_limits.failure_mode", strings.ToLower(c.RateLimits.FailureMode), "oneof=open closed")
	check("rooms.list_failure", strings.ToLower(c.Rooms.ListFailure), "oneof=open closed")
	check("rate_limits.timeout", int64(c.RateLimits.Timeout), "gte=0")
	check("rate_limits.trusted_proxy_hops", c.RateLimits.TrustedProxyHops, "gte=0,lte=16")

	for name, limit := range c.RateLimits.Categories {
		if limit.Limit <= 0 || limit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limits.categories.%s: limit and window must be positive", name))
		}
	}

	for kind, ttl := range c.Status.Kinds {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("status.kinds.%s: ttl must be positive", kind))
		}
	}

	if _, ok := c.Rooms.Types[c.Rooms.DefaultType]; !ok {
		errs = append(errs, fmt.Errorf("rooms.default_type: unknown room type %q", c.Rooms.DefaultType))
	}
	for name, rt := range c.Rooms.Types {
		if rt.MaxParticipants <= 0 {
			errs = append(errs, fmt.Errorf("rooms.types.%s.max_participants: must be positive", name))
		}
		for _, role := range rt.PublishRoles {
			if _, err := core.ParseRole(role); err != nil {
				errs = append(errs, fmt.Errorf("rooms.types.%s.publish_roles: %w", name, err))
			}
		}
	}

	seen := map[string]bool{}
	for i, entry := range c.Rooms.Catalog {
		if err := core.ValidateRoomName(entry.Name); err != nil {
			errs = append(errs, fmt.Errorf("rooms.catalog[%d]: %w", i, err))
		}
		if seen[entry.Name] {
			errs = append(errs, fmt.Errorf("rooms.catalog[%d]: duplicate room %q", i, entry.Name))
		}
		seen[entry.Name] = true
		if entry.Type != "" {
			if _, ok := c.Rooms.Types[entry.Type]; !ok {
				errs = append(errs, fmt.Errorf("rooms.catalog[%d]: unknown room type %q", i, entry.Type))
			}
		}
	}

	for i, binding := range c.Identity.Roles {
		if strings.TrimSpace(binding.Subject) == "" {
			errs = append(errs, fmt.Errorf("identity.roles[%d]: subject is required", i))
		}
		if _, err := core.ParseRole(binding.Role); err != nil {
			errs = append(errs, fmt.Errorf("identity.roles[%d]: %w", i, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Table returns the configured quotas keyed by category.
func (r RateLimitConfig) Table() map[core.Category]core.RateLimit {
	out := make(map[core.Category]core.RateLimit, len(r.Categories))
	for name, limit := range r.Categories {
		out[core.Category(strings.ToLower(name))] = core.RateLimit{Limit: limit.Limit, Window: limit.Window}
	}
	return out
}

// Policy returns the behavior on counter store failure.
func (r RateLimitConfig) Policy() core.FailurePolicy {
	return ParsePolicy(r.FailureMode)
}

// ParsePolicy maps "closed" to FailClosed and anything else to FailOpen.
func ParsePolicy(raw string) core.FailurePolicy {
	if strings.EqualFold(strings.TrimSpace(raw), "closed") {
		return core.FailClosed
	}
	return core.FailOpen
}

// KindTTLs returns the configured flag kinds with their default TTLs.
func (s StatusConfig) KindTTLs() map[core.StatusKind]time.Duration {
	out := make(map[core.StatusKind]time.Duration, len(s.Kinds))
	for kind, ttl := range s.Kinds {
		out[core.StatusKind(strings.ToLower(kind))] = ttl
	}
	return out
}
