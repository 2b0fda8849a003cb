package rbac

// Capability names a single finance permission.
type Capability string

const (
	CanViewProject         Capability = "canViewProject"
	CanCreateInvoices      Capability = "canCreateInvoices"
	CanSubmitInvoices      Capability = "canSubmitInvoices"
	CanManageVendors       Capability = "canManageVendors"
	CanManageBudget        Capability = "canManageBudget"
	CanCreateProposals     Capability = "canCreateProposals"
	CanVoteOnProposals     Capability = "canVoteOnProposals"
	CanApproveWithinLimit  Capability = "canApproveWithinLimit"
	CanApproveHighValue    Capability = "canApproveHighValue"
	CanApproveHighestValue Capability = "canApproveHighestValue"
	CanReleasePayments     Capability = "canReleasePayments"
	CanOverrideApprovals   Capability = "canOverrideApprovals"
	CanViewAuditTrail      Capability = "canViewAuditTrail"
	CanExportReports       Capability = "canExportReports"
)

// PermissionSet is the immutable capability profile of a finance role.
type PermissionSet struct {
	CanViewProject         bool `json:"canViewProject"`
	CanCreateInvoices      bool `json:"canCreateInvoices"`
	CanSubmitInvoices      bool `json:"canSubmitInvoices"`
	CanManageVendors       bool `json:"canManageVendors"`
	CanManageBudget        bool `json:"canManageBudget"`
	CanCreateProposals     bool `json:"canCreateProposals"`
	CanVoteOnProposals     bool `json:"canVoteOnProposals"`
	CanApproveWithinLimit  bool `json:"canApproveWithinLimit"`
	CanApproveHighValue    bool `json:"canApproveHighValue"`
	CanApproveHighestValue bool `json:"canApproveHighestValue"`
	CanReleasePayments     bool `json:"canReleasePayments"`
	CanOverrideApprovals   bool `json:"canOverrideApprovals"`
	CanViewAuditTrail      bool `json:"canViewAuditTrail"`
	CanExportReports       bool `json:"canExportReports"`
}

// Has reports whether the set grants c. Unknown capabilities are never granted.
func (p PermissionSet) Has(c Capability) bool {
	switch c {
	case CanViewProject:
		return p.CanViewProject
	case CanCreateInvoices:
		return p.CanCreateInvoices
	case CanSubmitInvoices:
		return p.CanSubmitInvoices
	case CanManageVendors:
		return p.CanManageVendors
	case CanManageBudget:
		return p.CanManageBudget
	case CanCreateProposals:
		return p.CanCreateProposals
	case CanVoteOnProposals:
		return p.CanVoteOnProposals
	case CanApproveWithinLimit:
		return p.CanApproveWithinLimit
	case CanApproveHighValue:
		return p.CanApproveHighValue
	case CanApproveHighestValue:
		return p.CanApproveHighestValue
	case CanReleasePayments:
		return p.CanReleasePayments
	case CanOverrideApprovals:
		return p.CanOverrideApprovals
	case CanViewAuditTrail:
		return p.CanViewAuditTrail
	case CanExportReports:
		return p.CanExportReports
	default:
		return false
	}
}

// AllCapabilities lists every finance capability.
func AllCapabilities() []Capability {
	return []Capability{
		CanViewProject, CanCreateInvoices, CanSubmitInvoices, CanManageVendors,
		CanManageBudget, CanCreateProposals, CanVoteOnProposals, CanApproveWithinLimit,
		CanApproveHighValue, CanApproveHighestValue, CanReleasePayments,
		CanOverrideApprovals, CanViewAuditTrail, CanExportReports,
	}
}

// Granted returns the capabilities held by p in declaration order.
func (p PermissionSet) Granted() []Capability {
	var out []Capability
	for _, c := range AllCapabilities() {
		if p.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// IsSupersetOf reports whether p grants everything other grants.
func (p PermissionSet) IsSupersetOf(other PermissionSet) bool {
	for _, c := range other.Granted() {
		if !p.Has(c) {
			return false
		}
	}
	return true
}

// SystemCapability names a platform permission.
type SystemCapability string

const (
	CanManageUsers         SystemCapability = "canManageUsers"
	CanManageProjects      SystemCapability = "canManageProjects"
	CanConfigureGovernance SystemCapability = "canConfigureGovernance"
	CanViewAllProjects     SystemCapability = "canViewAllProjects"
	CanSuspendAccounts     SystemCapability = "canSuspendAccounts"
	CanViewSystemAudit     SystemCapability = "canViewSystemAudit"
)

// SystemPermissionSet is the immutable capability profile of a system role.
type SystemPermissionSet struct {
	CanManageUsers         bool `json:"canManageUsers"`
	CanManageProjects      bool `json:"canManageProjects"`
	CanConfigureGovernance bool `json:"canConfigureGovernance"`
	CanViewAllProjects     bool `json:"canViewAllProjects"`
	CanSuspendAccounts     bool `json:"canSuspendAccounts"`
	CanViewSystemAudit     bool `json:"canViewSystemAudit"`
}

func (p SystemPermissionSet) Has(c SystemCapability) bool {
	switch c {
	case CanManageUsers:
		return p.CanManageUsers
	case CanManageProjects:
		return p.CanManageProjects
	case CanConfigureGovernance:
		return p.CanConfigureGovernance
	case CanViewAllProjects:
		return p.CanViewAllProjects
	case CanSuspendAccounts:
		return p.CanSuspendAccounts
	case CanViewSystemAudit:
		return p.CanViewSystemAudit
	default:
		return false
	}
}

var financePermissions = map[Role]PermissionSet{
	RoleVendor: {
		CanViewProject:    true,
		CanCreateInvoices: true,
		CanSubmitInvoices: true,
	},
	RoleProjectManager: {
		CanViewProject:        true,
		CanCreateInvoices:     true,
		CanManageVendors:      true,
		CanManageBudget:       true,
		CanCreateProposals:    true,
		CanVoteOnProposals:    true,
		CanApproveWithinLimit: true,
		CanViewAuditTrail:     true,
	},
	RoleTreasurer: {
		CanViewProject:        true,
		CanManageBudget:       true,
		CanCreateProposals:    true,
		CanVoteOnProposals:    true,
		CanApproveWithinLimit: true,
		CanApproveHighValue:   true,
		CanReleasePayments:    true,
		CanViewAuditTrail:     true,
	},
	RoleDAOMultisig: {
		CanViewProject:         true,
		CanManageBudget:        true,
		CanCreateProposals:     true,
		CanVoteOnProposals:     true,
		CanApproveWithinLimit:  true,
		CanApproveHighValue:    true,
		CanApproveHighestValue: true,
		CanReleasePayments:     true,
		CanOverrideApprovals:   true,
		CanViewAuditTrail:      true,
	},
	RoleAuditor: {
		CanViewProject:    true,
		CanViewAuditTrail: true,
		CanExportReports:  true,
	},
}

var systemPermissions = map[SystemRole]SystemPermissionSet{
	SystemRolePlatformAdmin: {
		CanManageUsers:         true,
		CanManageProjects:      true,
		CanConfigureGovernance: true,
		CanViewAllProjects:     true,
		CanSuspendAccounts:     true,
		CanViewSystemAudit:     true,
	},
	SystemRolePlatformOperator: {
		CanManageProjects:  true,
		CanViewAllProjects: true,
		CanViewSystemAudit: true,
	},
	SystemRolePlatformSupport: {
		CanViewAllProjects: true,
	},
}
