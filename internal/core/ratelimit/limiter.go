package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/counter"
)

// ErrStoreUnavailable is returned alongside degraded decisions.
var ErrStoreUnavailable = errors.New("rate limit counter store unavailable")

// DefaultTimeout bounds every counter store call.
const DefaultTimeout = 250 * time.Millisecond

// DefaultCategories provides the built-in quota table.
var DefaultCategories = map[core.Category]core.RateLimit{
	core.CategoryAuth:   {Limit: 5, Window: time.Minute},
	core.CategoryRead:   {Limit: 120, Window: time.Minute},
	core.CategoryToken:  {Limit: 20, Window: time.Minute},
	core.CategoryStatus: {Limit: 30, Window: time.Minute},
}

// FallbackLimit applies to categories missing from the table.
var FallbackLimit = core.RateLimit{Limit: 30, Window: time.Minute}

// Limiter enforces fixed-window quotas per client and category. Bursts of up
// to twice the limit across a window boundary are accepted.
type Limiter struct {
	Store        counter.Store
	Categories   map[core.Category]core.RateLimit
	Timeout      time.Duration
	OnStoreError core.FailurePolicy
	Clock        func() time.Time
}

// Check counts one request for clientID in category. When the store fails
// under FailOpen the request is admitted with the full quota, flagged as
// Degraded, and the store error is returned so the caller can log it.
func (l *Limiter) Check(ctx context.Context, clientID string, category core.Category) (core.Decision, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := l.now()
	limit := l.Limit(category)
	index, resetAt := window(now, limit.Window)

	if l == nil || l.Store == nil {
		return degraded(limit, resetAt), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout())
	defer cancel()

	count, err := l.Store.Increment(callCtx, Key(category, clientID, index), limit.Window)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		if l.OnStoreError == core.FailClosed {
			return core.Decision{Allowed: false, Limit: limit.Limit, ResetAt: resetAt, Degraded: true}, err
		}
		return degraded(limit, resetAt), err
	}

	remaining := max(limit.Limit-int(count), 0)
	return core.Decision{
		Allowed:   count <= int64(limit.Limit),
		Remaining: remaining,
		Limit:     limit.Limit,
		ResetAt:   resetAt,
	}, nil
}

// Inspect returns the current window's count without incrementing it.
func (l *Limiter) Inspect(ctx context.Context, clientID string, category core.Category) (int64, core.Decision, error) {
	if l == nil || l.Store == nil {
		return 0, core.Decision{}, ErrStoreUnavailable
	}

	limit := l.Limit(category)
	index, resetAt := window(l.now(), limit.Window)

	callCtx, cancel := context.WithTimeout(ctx, l.timeout())
	defer cancel()

	count, err := l.Store.Get(callCtx, Key(category, clientID, index))
	if err != nil {
		return 0, core.Decision{}, err
	}

	remaining := max(limit.Limit-int(count), 0)
	return count, core.Decision{
		Allowed:   count < int64(limit.Limit),
		Remaining: remaining,
		Limit:     limit.Limit,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the current window for clientID in category.
func (l *Limiter) Reset(ctx context.Context, clientID string, category core.Category) error {
	if l == nil || l.Store == nil {
		return ErrStoreUnavailable
	}

	limit := l.Limit(category)
	index, _ := window(l.now(), limit.Window)

	callCtx, cancel := context.WithTimeout(ctx, l.timeout())
	defer cancel()

	return l.Store.Delete(callCtx, Key(category, clientID, index))
}

// Limit returns the quota for category.
func (l *Limiter) Limit(category core.Category) core.RateLimit {
	categories := DefaultCategories
	if l != nil && l.Categories != nil {
		categories = l.Categories
	}
	if limit, ok := categories[category]; ok && limit.Limit > 0 && limit.Window > 0 {
		return limit
	}
	return FallbackLimit
}

// Key builds the counter key for one window.
func Key(category core.Category, clientID string, index int64) string {
	return fmt.Sprintf("rl:%s:%s:%d", category, clientID, index)
}

// RetryAfterSeconds returns the whole seconds until resetAt, rounded up and
// never below 1.
func RetryAfterSeconds(resetAt time.Time, now time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func window(now time.Time, size time.Duration) (int64, time.Time) {
	sizeMs := size.Milliseconds()
	if sizeMs <= 0 {
		sizeMs = FallbackLimit.Window.Milliseconds()
	}
	index := now.UnixMilli() / sizeMs
	return index, time.UnixMilli((index + 1) * sizeMs).UTC()
}

func degraded(limit core.RateLimit, resetAt time.Time) core.Decision {
	return core.Decision{
		Allowed:   true,
		Remaining: limit.Limit,
		Limit:     limit.Limit,
		ResetAt:   resetAt,
		Degraded:  true,
	}
}

func (l *Limiter) timeout() time.Duration {
	if l != nil && l.Timeout > 0 {
		return l.Timeout
	}
	return DefaultTimeout
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
