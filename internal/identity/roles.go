package identity

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roomgate/roomgate/internal/core"
)

// RoleTable maps subject ids and emails to roles. It is built once at
// startup and read-only afterwards.
type RoleTable struct {
	roles map[string]core.Role
}

type roleFile struct {
	Roles map[string]string `yaml:"roles"`
}

// NewRoleTable builds a table from identity -> role name entries.
func NewRoleTable(entries map[string]string) (*RoleTable, error) {
	t := &RoleTable{roles: make(map[string]core.Role, len(entries))}
	for key, raw := range entries {
		if err := t.set(key, raw); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LoadRoleTable reads path (when set) and merges overrides on top of it.
// Overrides win over file entries for the same identity.
func LoadRoleTable(path string, overrides map[string]string) (*RoleTable, error) {
	t := &RoleTable{roles: map[string]core.Role{}}

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read roles file: %w", err)
		}
		var file roleFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse roles file %s: %w", path, err)
		}
		for key, role := range file.Roles {
			if err := t.set(key, role); err != nil {
				return nil, fmt.Errorf("roles file %s: %w", path, err)
			}
		}
	}

	for key, role := range overrides {
		if err := t.set(key, role); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *RoleTable) set(key, raw string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("role entry without identity")
	}
	role, err := core.ParseRole(raw)
	if err != nil {
		return fmt.Errorf("identity %q: %w", key, err)
	}
	t.roles[key] = role
	return nil
}

// RoleFor returns the role of the subject, matched by id first and then by
// email. Unlisted identities are members.
func (t *RoleTable) RoleFor(subjectID, email string) core.Role {
	if t == nil {
		return core.RoleMember
	}
	if role, ok := t.roles[normalizeKey(subjectID)]; ok {
		return role
	}
	if email != "" {
		if role, ok := t.roles[normalizeKey(email)]; ok {
			return role
		}
	}
	return core.RoleMember
}

// Len returns the number of entries.
func (t *RoleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.roles)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
