package governance

import (
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/rbac"
)

// Vote is one recorded decision. Votes are append-only and ordered by arrival.
type Vote struct {
	ActorID  string    `json:"actor_id"`
	Role     rbac.Role `json:"role"`
	Decision string    `json:"decision"`
	Weight   int64     `json:"weight"`
	At       time.Time `json:"at"`
}

// Proposal is a financial action awaiting collective approval. Params is the
// parameter set that was current when the proposal opened; later publications
// never affect it.
type Proposal struct {
	ID             string           `json:"id"`
	ProjectID      string           `json:"project_id"`
	Kind           string           `json:"kind"`
	Memo           string           `json:"memo,omitempty"`
	Class          ProposalClass    `json:"class"`
	Emergency      bool             `json:"emergency"`
	Amount         domain.Money     `json:"amount"`
	Params         ParameterSet     `json:"params"`
	Deposit        domain.Money     `json:"deposit"`
	Electorate     map[string]int64 `json:"electorate"`
	Votes          []Vote           `json:"votes"`
	Status         string           `json:"status"`
	OpenedBy       string           `json:"opened_by"`
	OpenedAt       time.Time        `json:"opened_at"`
	VotingEndsAt   time.Time        `json:"voting_ends_at"`
	ThresholdMetAt *time.Time       `json:"threshold_met_at,omitempty"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
	Overridden     bool             `json:"overridden"`
	CloseReason    string           `json:"close_reason,omitempty"`
	Revision       int64            `json:"revision"`
}

// ClassParameters returns the pinned thresholds for the proposal's class.
func (p *Proposal) ClassParameters() ClassParameters {
	return p.Params.For(p.Class)
}

func (p *Proposal) Tally() Tally {
	return ComputeTally(p.Electorate, p.Votes, p.Class, p.ClassParameters())
}

func (p *Proposal) Terminal() bool {
	return domain.IsTerminalStatus(p.Status)
}

// ExecutableAt returns when the timelock releases, if thresholds have been met.
func (p *Proposal) ExecutableAt() (time.Time, bool) {
	if p.ThresholdMetAt == nil {
		return time.Time{}, false
	}
	return p.ThresholdMetAt.Add(p.ClassParameters().Timelock()), true
}

func (p *Proposal) votingClosed(now time.Time) bool {
	return !now.Before(p.VotingEndsAt)
}

func (p *Proposal) hasVoted(actorID string) bool {
	for _, v := range p.Votes {
		if v.ActorID == actorID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate.
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.Electorate = make(map[string]int64, len(p.Electorate))
	for k, v := range p.Electorate {
		c.Electorate[k] = v
	}
	c.Votes = append([]Vote(nil), p.Votes...)
	if p.ThresholdMetAt != nil {
		t := *p.ThresholdMetAt
		c.ThresholdMetAt = &t
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

func (p *Proposal) validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("proposal id is required")
	case strings.TrimSpace(p.ProjectID) == "":
		return fmt.Errorf("project id is required")
	case !p.Amount.Currency.Valid():
		return fmt.Errorf("unsupported currency %q", p.Amount.Currency)
	case !p.Amount.IsPositive():
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	case len(p.Electorate) == 0:
		return fmt.Errorf("electorate is empty")
	}
	for actor, w := range p.Electorate {
		if strings.TrimSpace(actor) == "" || w <= 0 {
			return fmt.Errorf("electorate entry %q has weight %d", actor, w)
		}
	}
	return p.Params.Validate()
}

// Change records a single state change for persistence and audit.
type Change struct {
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id,omitempty"`
	PrevStatus string    `json:"prev_status"`
	NextStatus string    `json:"next_status"`
	Vote       *Vote     `json:"vote,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Outcome is a committed transition: the new proposal snapshot and what changed.
type Outcome struct {
	Proposal *Proposal
	Changes  []Change
}

// Terminal reports whether the outcome moved the proposal into a terminal status.
func (o Outcome) Terminal() bool {
	for _, c := range o.Changes {
		if domain.IsTerminalStatus(c.NextStatus) && c.PrevStatus != c.NextStatus {
			return true
		}
	}
	return false
}

// reevaluate refreshes ThresholdMetAt after the vote list changed and executes
// when the cool-down has already elapsed.
func (p *Proposal) reevaluate(now time.Time) []Change {
	var changes []Change
	passed := p.Tally().Passed()
	switch {
	case passed && p.ThresholdMetAt == nil:
		t := now
		p.ThresholdMetAt = &t
		changes = append(changes, p.change(domain.AuditActionThresholdMet, "", p.Status, now))
	case !passed && p.ThresholdMetAt != nil:
		p.ThresholdMetAt = nil
		changes = append(changes, p.change(domain.AuditActionThresholdLost, "", p.Status, now))
	}
	if at, ok := p.ExecutableAt(); ok && !now.Before(at) {
		changes = append(changes, p.close(domain.ProposalStatusExecuted, domain.AuditActionExecuted, "", "thresholds met and timelock elapsed", now))
	}
	return changes
}

// closeVoting settles a proposal whose voting window ended without passing. It is
// REJECTED when quorum was reached but the vote failed, EXPIRED otherwise.
func (p *Proposal) closeVoting(now time.Time) Change {
	if p.Tally().QuorumMet {
		return p.close(domain.ProposalStatusRejected, domain.AuditActionRejected, "", "voting period ended with quorum but thresholds not met", now)
	}
	return p.close(domain.ProposalStatusExpired, domain.AuditActionExpired, "", "voting period ended without quorum", now)
}

func (p *Proposal) close(status, action, actorID, reason string, now time.Time) Change {
	prev := p.Status
	t := now
	p.Status = status
	p.ClosedAt = &t
	p.CloseReason = reason
	c := p.change(action, actorID, prev, now)
	c.Reason = reason
	return c
}

func (p *Proposal) change(action, actorID, prev string, now time.Time) Change {
	return Change{Action: action, ActorID: actorID, PrevStatus: prev, NextStatus: p.Status, At: now}
}
