package rbac

import (
	"fmt"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/shopspring/decimal"
)

// ApprovalLimits are the per-role ceilings, in major currency units, for roles whose
// approval capability is limit-bound. USDC amounts are measured against the same
// figure at par.
type ApprovalLimits map[Role]decimal.Decimal

// Registry resolves roles to capabilities. It is immutable after NewRegistry returns
// and safe for concurrent use without locking.
type Registry struct {
	finance map[Role]PermissionSet
	system  map[SystemRole]SystemPermissionSet
	limits  map[Role]map[domain.Currency]domain.Money
}

// NewRegistry builds the registry and refuses to start when a limit-bound role has
// no configured ceiling.
func NewRegistry(limits ApprovalLimits) (*Registry, error) {
	r := &Registry{
		finance: make(map[Role]PermissionSet, len(financePermissions)),
		system:  make(map[SystemRole]SystemPermissionSet, len(systemPermissions)),
		limits:  make(map[Role]map[domain.Currency]domain.Money),
	}
	for role, set := range financePermissions {
		r.finance[role] = set
	}
	for role, set := range systemPermissions {
		r.system[role] = set
	}

	for _, role := range FinanceRoles() {
		tier, ok := ApprovalTier(r.finance[role])
		if !ok || tier == CanApproveHighestValue {
			continue
		}
		limit, ok := limits[role]
		if !ok {
			return nil, fmt.Errorf("approval limit for %s is not configured", role)
		}
		if !limit.IsPositive() {
			return nil, fmt.Errorf("approval limit for %s must be positive, got %s", role, limit)
		}
		perCurrency := make(map[domain.Currency]domain.Money, 2)
		for _, c := range []domain.Currency{domain.USD, domain.USDC} {
			m, err := domain.FromDecimal(limit, c)
			if err != nil {
				return nil, fmt.Errorf("approval limit for %s: %w", role, err)
			}
			perCurrency[c] = m
		}
		r.limits[role] = perCurrency
	}
	return r, nil
}

// PermissionsFor returns the capability set of role. Values outside the enum get
// the empty set.
func (r *Registry) PermissionsFor(role Role) PermissionSet {
	return r.finance[role]
}

// PermissionsForName resolves an external role name, failing with ErrUnknownRole.
func (r *Registry) PermissionsForName(name string) (Role, PermissionSet, error) {
	role, err := ParseRole(name)
	if err != nil {
		return 0, PermissionSet{}, err
	}
	return role, r.finance[role], nil
}

func (r *Registry) HasCapability(role Role, c Capability) bool {
	return r.finance[role].Has(c)
}

func (r *Registry) SystemPermissionsFor(role SystemRole) SystemPermissionSet {
	return r.system[role]
}

func (r *Registry) HasSystemCapability(role SystemRole, c SystemCapability) bool {
	return r.system[role].Has(c)
}

// ApprovalLimit returns the ceiling for role in currency. bounded is false when the
// role approves without a ceiling or has no approval capability at all.
func (r *Registry) ApprovalLimit(role Role, currency domain.Currency) (limit domain.Money, bounded bool) {
	perCurrency, ok := r.limits[role]
	if !ok {
		return domain.Money{}, false
	}
	limit, ok = perCurrency[currency]
	return limit, ok
}

// ApprovalTier returns the highest approval capability in set.
func ApprovalTier(set PermissionSet) (Capability, bool) {
	switch {
	case set.CanApproveHighestValue:
		return CanApproveHighestValue, true
	case set.CanApproveHighValue:
		return CanApproveHighValue, true
	case set.CanApproveWithinLimit:
		return CanApproveWithinLimit, true
	default:
		return "", false
	}
}
