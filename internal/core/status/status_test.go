package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/core"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestIsActive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{-time.Hour, -time.Second, -time.Nanosecond, 0} {
		until := now.Add(offset)
		require.False(t, IsActive(&until, now), "offset %s", offset)
	}
	for _, offset := range []time.Duration{time.Nanosecond, time.Second, time.Hour} {
		until := now.Add(offset)
		require.True(t, IsActive(&until, now), "offset %s", offset)
	}
	require.False(t, IsActive(nil, now))
}

func TestRemainingNonIncreasing(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	until := start.Add(10 * time.Second)

	prev := time.Duration(1<<62 - 1)
	for step := 0; step <= 12; step++ {
		now := start.Add(time.Duration(step) * time.Second)
		left := Remaining(&until, now)
		require.NotNil(t, left)
		require.LessOrEqual(t, *left, prev)
		prev = *left
	}

	atExpiry := Remaining(&until, until)
	require.NotNil(t, atExpiry)
	require.Equal(t, time.Duration(0), *atExpiry)

	require.Nil(t, Remaining(nil, start))
}

func TestTTLFlagActivateExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore("alice")
	flag := &TTLFlag[core.StatusKind]{Kind: core.StatusAvailable, TTL: time.Hour, Store: store, Clock: clock.Now}
	ctx := context.Background()

	until, err := flag.Activate(ctx, "alice", 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, clock.now.Add(15*time.Minute), until)

	rec, err := flag.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, rec.Active(clock.Now()))

	clock.Advance(15*time.Minute + time.Second)
	rec, err = flag.Load(ctx, "alice")
	require.NoError(t, err)
	require.False(t, rec.Active(clock.Now()))
}

func TestTTLFlagActivateDoesNotStack(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	flag := &TTLFlag[core.StatusKind]{Kind: core.StatusLooking, TTL: 30 * time.Minute, Store: NewMemoryStore("bob"), Clock: clock.Now}
	ctx := context.Background()

	_, err := flag.Activate(ctx, "bob", 0)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	until, err := flag.Activate(ctx, "bob", 0)
	require.NoError(t, err)
	require.Equal(t, clock.now.Add(30*time.Minute), until)
}

func TestTTLFlagUnknownSubject(t *testing.T) {
	flag := &TTLFlag[core.StatusKind]{Kind: core.StatusAvailable, TTL: time.Hour, Store: NewMemoryStore()}

	_, err := flag.Activate(context.Background(), "ghost", 0)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.ErrorIs(t, flag.Deactivate(context.Background(), "ghost"), core.ErrNotFound)
}

func TestEngineToggle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	engine := NewEngine(NewMemoryStore("alice"), nil, clock.Now)
	ctx := context.Background()

	snap, err := engine.Toggle(ctx, "alice", core.StatusAvailable)
	require.NoError(t, err)
	require.True(t, snap.Active)
	require.NotNil(t, snap.ActiveUntil)
	require.Equal(t, clock.now.Add(time.Hour), *snap.ActiveUntil)

	snap, err = engine.Toggle(ctx, "alice", core.StatusAvailable)
	require.NoError(t, err)
	require.False(t, snap.Active)
	require.Nil(t, snap.ActiveUntil)
}

func TestEngineToggleAfterExpiryReactivates(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	engine := NewEngine(NewMemoryStore("alice"), nil, clock.Now)
	ctx := context.Background()

	_, err := engine.Toggle(ctx, "alice", core.StatusLooking)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	snap, err := engine.Toggle(ctx, "alice", core.StatusLooking)
	require.NoError(t, err)
	require.True(t, snap.Active)
}

func TestEngineKindsIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	engine := NewEngine(NewMemoryStore("alice"), nil, clock.Now)
	ctx := context.Background()

	_, err := engine.Activate(ctx, "alice", core.StatusAvailable, 0)
	require.NoError(t, err)

	snaps, err := engine.Snapshot(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, core.StatusAvailable, snaps[0].Kind)
	require.True(t, snaps[0].Active)
	require.Equal(t, core.StatusLooking, snaps[1].Kind)
	require.False(t, snaps[1].Active)
}

func TestEngineUnknownKind(t *testing.T) {
	engine := NewEngine(NewMemoryStore("alice"), nil, nil)

	_, err := engine.ParseKind("invisible")
	require.True(t, core.IsValidation(err))

	_, err = engine.Toggle(context.Background(), "alice", "invisible")
	require.True(t, core.IsValidation(err))

	kind, err := engine.ParseKind(" Available ")
	require.NoError(t, err)
	require.Equal(t, core.StatusAvailable, kind)
}
