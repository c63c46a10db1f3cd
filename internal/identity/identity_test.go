package identity

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/core"
)

const testSecret = "identity-secret-identity-secret-0123"

type memoryProfiles struct {
	mu       sync.Mutex
	subjects map[string]core.Subject
	upserts  int
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{subjects: map[string]core.Subject{}}
}

func (m *memoryProfiles) GetSubject(_ context.Context, id string) (*core.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subject, ok := m.subjects[id]
	if !ok {
		return nil, nil
	}
	return &subject, nil
}

func (m *memoryProfiles) UpsertSubject(_ context.Context, subject core.Subject) (*core.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.subjects[subject.ID] = subject
	return &subject, nil
}

func newTestAuthority(t *testing.T, now time.Time) *Authority {
	t.Helper()
	authority, err := NewAuthority(testSecret, "https://id.example", "roomgate")
	require.NoError(t, err)
	authority.Clock = func() time.Time { return now }
	return authority
}

func TestNewAuthorityRequiresSecret(t *testing.T) {
	_, err := NewAuthority("  ", "", "")
	require.True(t, core.IsConfig(err))
}

func TestVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	authority := newTestAuthority(t, now)

	token, err := authority.Issue("user-1", ProfileClaims{Email: "ada@example.com", Name: "Ada"}, time.Hour)
	require.NoError(t, err)

	std, claims, err := authority.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", std.Subject)
	require.Equal(t, "Ada", claims.Name)

	t.Run("expired", func(t *testing.T) {
		later := newTestAuthority(t, now.Add(2*time.Hour))
		_, _, err := later.Verify(token)
		require.True(t, core.IsAuth(err))
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := newTestAuthority(t, now)
		other.Audience = "another-service"
		_, _, err := other.Verify(token)
		require.True(t, core.IsAuth(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewAuthority("another-secret-another-secret-012345", "https://id.example", "roomgate")
		require.NoError(t, err)
		other.Clock = func() time.Time { return now }
		_, _, err = other.Verify(token)
		require.True(t, core.IsAuth(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := authority.Verify("not-a-jwt")
		require.True(t, core.IsAuth(err))
	})
}

func TestParseBearer(t *testing.T) {
	token, err := ParseBearer("Bearer abc.def.ghi")
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", token)

	token, err = ParseBearer("bearer   xyz")
	require.NoError(t, err)
	require.Equal(t, "xyz", token)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		_, err := ParseBearer(header)
		require.True(t, core.IsAuth(err), header)
	}
}

func TestAuthenticateRegistersAndPrefersStoredProfile(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	authority := newTestAuthority(t, now)
	profiles := newMemoryProfiles()
	roles, err := NewRoleTable(map[string]string{"ada@example.com": "host"})
	require.NoError(t, err)

	provider := &Provider{Authority: authority, Profiles: profiles, Roles: roles}
	token, err := authority.Issue("user-1", ProfileClaims{Email: "Ada@example.com", Name: "Ada"}, time.Hour)
	require.NoError(t, err)

	principal, err := provider.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-1", principal.SubjectID)
	require.Equal(t, "Ada", principal.DisplayName)
	require.Equal(t, core.RoleHost, principal.Role)
	require.Equal(t, 1, profiles.upserts)

	profiles.subjects["user-1"] = core.Subject{ID: "user-1", DisplayName: "Countess Ada", AvatarURL: "https://cdn.example/ada.png"}

	principal, err = provider.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "Countess Ada", principal.DisplayName)
	require.Equal(t, "https://cdn.example/ada.png", principal.AvatarURL)
	require.Equal(t, 1, profiles.upserts)
}

func TestAuthenticateWithoutProfiles(t *testing.T) {
	authority := newTestAuthority(t, time.Now().UTC())
	provider := &Provider{Authority: authority}

	token, err := authority.Issue("user-2", ProfileClaims{Email: "grace@example.com"}, time.Hour)
	require.NoError(t, err)

	principal, err := provider.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "grace", principal.DisplayName)
	require.Equal(t, core.RoleMember, principal.Role)

	_, err = provider.Authenticate(context.Background(), "")
	require.True(t, core.IsAuth(err))

	_, err = (&Provider{}).Authenticate(context.Background(), token)
	require.True(t, core.IsConfig(err))
}

func TestLoadRoleTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roles:
  ada@example.com: host
  user-7: moderator
  grace@example.com: admin
`), 0o600))

	table, err := LoadRoleTable(path, map[string]string{"grace@example.com": "member"})
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	require.Equal(t, core.RoleHost, table.RoleFor("user-1", "ADA@example.com"))
	require.Equal(t, core.RoleModerator, table.RoleFor("user-7", "someone@example.com"))
	require.Equal(t, core.RoleMember, table.RoleFor("user-9", "grace@example.com"))
	require.Equal(t, core.RoleMember, table.RoleFor("nobody", ""))

	var nilTable *RoleTable
	require.Equal(t, core.RoleMember, nilTable.RoleFor("user-1", "ada@example.com"))
}

func TestLoadRoleTableRejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  ada: overlord\n"), 0o600))

	_, err := LoadRoleTable(path, nil)
	require.ErrorContains(t, err, "overlord")

	_, err = LoadRoleTable(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
