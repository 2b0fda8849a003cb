package domain

// Proposal statuses.
const (
	ProposalStatusOpen     = "OPEN"
	ProposalStatusExecuted = "EXECUTED"
	ProposalStatusRejected = "REJECTED"
	ProposalStatusExpired  = "EXPIRED"
)

// Vote decisions.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// Audit actions written for proposal transitions.
const (
	AuditActionOpened           = "proposal_opened"
	AuditActionVoted            = "proposal_voted"
	AuditActionThresholdMet     = "threshold_met"
	AuditActionThresholdLost    = "threshold_lost"
	AuditActionExecuted         = "proposal_executed"
	AuditActionRejected         = "proposal_rejected"
	AuditActionExpired          = "proposal_expired"
	AuditActionOverrideExecuted = "override_executed"
	AuditActionOverrideRejected = "override_rejected"
	AuditActionVersionPublished = "governance_version_published"
)

// IsTerminalStatus reports whether no further transition may leave status.
func IsTerminalStatus(status string) bool {
	switch status {
	case ProposalStatusExecuted, ProposalStatusRejected, ProposalStatusExpired:
		return true
	default:
		return false
	}
}
