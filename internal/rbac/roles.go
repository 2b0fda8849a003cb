// Package rbac holds the static role -> capability registry.
//
// Finance roles are scoped to a project; system roles apply platform-wide. Both
// universes are closed enums, and every role maps to a concrete capability struct
// so that a misspelt permission fails to compile instead of silently denying.
package rbac

import (
	"fmt"
	"strings"

	"github.com/ayo6706/treasury-governance/internal/domain"
)

// Role is a project-scoped finance role.
type Role int

const (
	RoleVendor Role = iota + 1
	RoleProjectManager
	RoleTreasurer
	RoleDAOMultisig
	RoleAuditor
)

var roleNames = map[Role]string{
	RoleVendor:         "VENDOR",
	RoleProjectManager: "PROJECT_MANAGER",
	RoleTreasurer:      "TREASURER",
	RoleDAOMultisig:    "DAO_MULTISIG",
	RoleAuditor:        "AUDITOR",
}

// FinanceRoles lists every finance role in tier order.
func FinanceRoles() []Role {
	return []Role{RoleVendor, RoleProjectManager, RoleTreasurer, RoleDAOMultisig, RoleAuditor}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%d: %w", int(r), domain.ErrUnknownRole)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole maps an external role name onto the finance role enum.
func ParseRole(name string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for role, n := range roleNames {
		if n == normalized {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, domain.ErrUnknownRole)
}

// SystemRole is a platform-scoped role, independent of any project.
type SystemRole int

const (
	SystemRolePlatformAdmin SystemRole = iota + 1
	SystemRolePlatformOperator
	SystemRolePlatformSupport
)

var systemRoleNames = map[SystemRole]string{
	SystemRolePlatformAdmin:    "PLATFORM_ADMIN",
	SystemRolePlatformOperator: "PLATFORM_OPERATOR",
	SystemRolePlatformSupport:  "PLATFORM_SUPPORT",
}

func SystemRoles() []SystemRole {
	return []SystemRole{SystemRolePlatformAdmin, SystemRolePlatformOperator, SystemRolePlatformSupport}
}

func (r SystemRole) String() string {
	if name, ok := systemRoleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("SystemRole(%d)", int(r))
}

func (r SystemRole) Valid() bool {
	_, ok := systemRoleNames[r]
	return ok
}

func ParseSystemRole(name string) (SystemRole, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for role, n := range systemRoleNames {
		if n == normalized {
			return role, nil
		}
	}
	return 0, fmt.Errorf("system role %q: %w", name, domain.ErrUnknownRole)
}
