// Package accesscontrol provides role-indexed authorization for privileged
// operations. Each contract-like component owns an independent Registry;
// holding a role on one registry confers nothing on any other.
package accesscontrol

import (
	"errors"
	"fmt"
	"sync"
)

// Role is a named authorization tag.
type Role string

const (
	// RoleDefaultAdmin can grant and revoke any role on its registry.
	RoleDefaultAdmin Role = "DEFAULT_ADMIN"
	// RoleSaleAdmin can adjust the sale window and purchase limits.
	RoleSaleAdmin Role = "SALE_ADMIN"
	// RolePauser can freeze and unfreeze the owning component.
	RolePauser Role = "PAUSER"
	// RoleMinter can mint on the token ledger.
	RoleMinter Role = "MINTER"
)

var (
	ErrUnauthorized = errors.New("accesscontrol: caller lacks required role")
	ErrZeroAddress  = errors.New("accesscontrol: zero address")
)

// Registry holds per-role principal sets for a single component.
type Registry struct {
	mu    sync.RWMutex
	roles map[Role]map[string]struct{}
}

// NewRegistry creates a registry with the given principal as default admin.
func NewRegistry(admin string) (*Registry, error) {
	if admin == "" {
		return nil, ErrZeroAddress
	}
	r := &Registry{roles: make(map[Role]map[string]struct{})}
	r.roles[RoleDefaultAdmin] = map[string]struct{}{admin: {}}
	return r, nil
}

// Has reports whether the principal holds the role.
func (r *Registry) Has(principal string, role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roles[role][principal]
	return ok
}

// Require returns ErrUnauthorized unless the principal holds the role.
func (r *Registry) Require(principal string, role Role) error {
	if !r.Has(principal, role) {
		return fmt.Errorf("%w: %s requires %s", ErrUnauthorized, principal, role)
	}
	return nil
}

// Grant adds the principal to the role set. Only a default admin may grant.
// Granting a role the principal already holds is a no-op.
func (r *Registry) Grant(caller, principal string, role Role) error {
	if err := r.Require(caller, RoleDefaultAdmin); err != nil {
		return err
	}
	if principal == "" {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.roles[role]
	if !ok {
		set = make(map[string]struct{})
		r.roles[role] = set
	}
	set[principal] = struct{}{}
	return nil
}

// Revoke removes the principal from the role set. Only a default admin may
// revoke. Revoking an unheld role is a no-op.
func (r *Registry) Revoke(caller, principal string, role Role) error {
	if err := r.Require(caller, RoleDefaultAdmin); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[role], principal)
	return nil
}

// Members returns the principals currently holding the role.
func (r *Registry) Members(role Role) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]string, 0, len(r.roles[role]))
	for p := range r.roles[role] {
		members = append(members, p)
	}
	return members
}
