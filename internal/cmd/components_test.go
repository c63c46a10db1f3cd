package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/config"
	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/counter"
	"github.com/roomgate/roomgate/internal/core/store"
	"github.com/roomgate/roomgate/internal/identity"
	"github.com/roomgate/roomgate/internal/output"
)

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	config.SetConfigFile("")
	config.SetEnvFile("")
	t.Cleanup(func() {
		config.SetConfigFile("")
		config.SetEnvFile(".env")
	})

	base := map[string]any{
		"store":  map[string]any{"path": filepath.Join(t.TempDir(), "roomgate.db")},
		"badger": map[string]any{"in_memory": true},
	}
	cfg, err := config.Load(context.Background(), base, overrides)
	require.NoError(t, err)
	return cfg
}

func TestBuildComponentsDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, nil)

	c, err := buildComponents(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	// libsql is both the profile store and the counter store by default
	assert.Same(t, c.store, c.counters.(*store.Store))
	assert.Same(t, c.store, c.limiter.Store.(*store.Store))
	assert.Equal(t, core.FailOpen, c.limiter.OnStoreError)
	assert.Equal(t, 5, c.limiter.Limit(core.CategoryAuth).Limit)

	assert.False(t, c.rooms.Configured())
	assert.Nil(t, c.identity)
	assert.Nil(t, c.authority)

	_, err = c.store.UpsertSubject(ctx, core.Subject{ID: "user-1", DisplayName: "Ada"})
	require.NoError(t, err)
	until, err := c.status.Activate(ctx, "user-1", core.StatusLooking, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), until, 5*time.Second)

	decision, err := c.limiter.Check(ctx, "1.2.3.4", core.CategoryAuth)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 4, decision.Remaining)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestOpenCountersBackends(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		backend string
		check   func(t *testing.T, s counter.Store)
	}{
		{counter.BackendMemory, func(t *testing.T, s counter.Store) { assert.IsType(t, &counter.MemoryStore{}, s) }},
		{counter.BackendBadger, func(t *testing.T, s counter.Store) { assert.IsType(t, &counter.BadgerStore{}, s) }},
		{counter.BackendRedis, func(t *testing.T, s counter.Store) { assert.IsType(t, &counter.RedisStore{}, s) }},
	}

	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			cfg := testConfig(t, map[string]any{
				"rate_limits": map[string]any{"backend": tc.backend},
				"redis":       map[string]any{"addrs": []string{"127.0.0.1:1"}},
			})

			s, closeFn, err := openCounters(ctx, cfg, nil)
			require.NoError(t, err)
			tc.check(t, s)
			if closeFn != nil {
				t.Cleanup(func() { _ = closeFn() })
			}
		})
	}

	t.Run("libsql without store", func(t *testing.T) {
		cfg := testConfig(t, nil)
		_, _, err := openCounters(ctx, cfg, nil)
		assert.True(t, core.IsConfig(err))
	})
}

func TestPingCounters(t *testing.T) {
	assert.NoError(t, pingCounters(context.Background(), counter.NewMemoryStore()))
}

func TestNewRoomsServiceFromConfig(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"provider": map[string]any{
			"url":        "wss://rooms.example.com",
			"api_key":    "key",
			"api_secret": "secret",
		},
		"rooms": map[string]any{
			"catalog": []map[string]any{
				{"name": "green-room", "display_name": "Green Room", "type": "stage"},
			},
		},
	})

	svc, err := newRoomsService(cfg, nil)
	require.NoError(t, err)
	assert.True(t, svc.Configured())

	entry, ok := svc.Entry("green-room")
	require.True(t, ok)
	assert.Equal(t, "Green Room", entry.DisplayName)

	_, ok = svc.Entry("lobby-1")
	assert.False(t, ok, "configured catalog replaces the built-in one")

	name, rt := svc.RoomType("stage")
	assert.Equal(t, "stage", name)
	assert.Equal(t, 1000, rt.MaxParticipants)
	assert.Equal(t, []core.Role{core.RoleHost, core.RoleModerator, core.RoleAdmin}, rt.PublishRoles)
}

func TestNewIdentityAppliesRoleBindings(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"identity": map[string]any{
			"jwt_secret": "cmd-test-secret-cmd-test-secret",
			"roles": []map[string]any{
				{"subject": "Host@Example.com", "role": "host"},
			},
		},
	})

	authority, provider, err := newIdentity(cfg.Identity, nil)
	require.NoError(t, err)
	require.NotNil(t, provider)

	token, err := authority.Issue("user-9", identity.ProfileClaims{Email: "host@example.com"}, time.Hour)
	require.NoError(t, err)

	principal, err := provider.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, core.RoleHost, principal.Role)
	assert.Equal(t, "host", principal.DisplayName)
}

func TestServeOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "serve"}
	var host string
	var port int
	cmd.Flags().StringVar(&host, "host", "localhost", "")
	cmd.Flags().IntVar(&port, "port", 8080, "")

	assert.Empty(t, serveOverrides(cmd))

	require.NoError(t, cmd.Flags().Set("port", "9000"))
	serverPort = 9000
	t.Cleanup(func() { serverPort = 8080 })
	assert.Equal(t, map[string]any{"server": map[string]any{"port": 9000}}, serveOverrides(cmd))
}

func TestWriteOutputFormats(t *testing.T) {
	newCmd := func(args ...string) (*cobra.Command, *bytes.Buffer) {
		cmd := &cobra.Command{Use: "list"}
		addOutputFlags(cmd)
		require.NoError(t, cmd.ParseFlags(args))
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		return cmd, &buf
	}
	table := output.Table{
		Title:  "Rooms",
		Header: []string{"name", "participants"},
		Rows:   [][]any{{"lobby-1", 12}},
	}

	cmd, buf := newCmd("--output-format", "json")
	require.NoError(t, writeOutput(cmd, "rooms", table))
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, "lobby-1", rows[0]["name"])

	dir := t.TempDir()
	cmd, buf = newCmd("--output-format", "markdown", "--out-dir", dir)
	require.NoError(t, writeOutput(cmd, "rooms", table))
	assert.Empty(t, buf.String())
	assert.FileExists(t, filepath.Join(dir, "rooms.md"))

	cmd, _ = newCmd("--out", "a.txt", "--out-dir", dir)
	assert.Error(t, writeOutput(cmd, "rooms", table))
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(fmt.Errorf("boot: %w", &core.ConfigError{Component: "identity"})))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(&core.UpstreamError{Op: "CreateRoom", Err: assert.AnError}))
	assert.Equal(t, foundry.ExitFileNotFound, ExitCodeFor(fmt.Errorf("read roles: %w", fs.ErrNotExist)))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(assert.AnError))
}
