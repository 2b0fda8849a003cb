package service

import (
	"fmt"
	"strings"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/governance"
)

var proposalTransitions = map[string]map[string]struct{}{
	"": {
		domain.ProposalStatusOpen: {},
	},
	domain.ProposalStatusOpen: {
		domain.ProposalStatusOpen:     {},
		domain.ProposalStatusExecuted: {},
		domain.ProposalStatusRejected: {},
		domain.ProposalStatusExpired:  {},
	},
	domain.ProposalStatusExecuted: {},
	domain.ProposalStatusRejected: {},
	domain.ProposalStatusExpired:  {},
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func canTransition(current, next string) bool {
	nextStates, ok := proposalTransitions[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

// validateChanges checks that changes chain from one status to the next, never leave
// a terminal status, and end at the proposal's current status.
func validateChanges(p *governance.Proposal, changes []governance.Change) error {
	if len(changes) == 0 {
		return fmt.Errorf("proposal %s: empty change set", p.ID)
	}
	current := changes[0].PrevStatus
	for _, c := range changes {
		if normalizeState(c.PrevStatus) != normalizeState(current) {
			return fmt.Errorf("proposal %s: change %s starts from %s, expected %s", p.ID, c.Action, c.PrevStatus, current)
		}
		if !canTransition(c.PrevStatus, c.NextStatus) {
			return fmt.Errorf("invalid proposal state transition: %q -> %q", c.PrevStatus, c.NextStatus)
		}
		current = c.NextStatus
	}
	if normalizeState(current) != normalizeState(p.Status) {
		return fmt.Errorf("proposal %s: changes end at %s but proposal is %s", p.ID, current, p.Status)
	}
	return nil
}
