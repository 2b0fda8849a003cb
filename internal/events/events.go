// Package events announces finalized and terminal proposals to downstream
// collaborators such as disbursement execution and notification services.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/google/uuid"
)

// SubjectPrefix is prepended to the lower-cased terminal status.
const SubjectPrefix = "governance.proposal"

type Approval struct {
	ActorID  string    `json:"actor_id"`
	Role     string    `json:"role"`
	Decision string    `json:"decision"`
	Weight   int64     `json:"weight"`
	At       time.Time `json:"at"`
}

// ProposalEvent is the payload published when a proposal reaches a terminal status.
type ProposalEvent struct {
	EventID       uuid.UUID    `json:"event_id"`
	ProposalID    string       `json:"proposal_id"`
	ProjectID     string       `json:"project_id"`
	Kind          string       `json:"kind"`
	Memo          string       `json:"memo,omitempty"`
	Status        string       `json:"status"`
	FinalClass    string       `json:"final_class"`
	FinalAmount   domain.Money `json:"final_amount"`
	Deposit       domain.Money `json:"deposit"`
	ParamsVersion string       `json:"params_version"`
	Approvals     []Approval   `json:"approvals"`
	Overridden    bool         `json:"overridden"`
	Reason        string       `json:"reason,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// Subject returns the NATS subject the event is published on.
func (e ProposalEvent) Subject() string {
	return SubjectPrefix + "." + strings.ToLower(e.Status)
}

// Publisher delivers proposal events. PublishFinalized carries EXECUTED proposals;
// PublishTerminal carries REJECTED and EXPIRED ones.
type Publisher interface {
	PublishFinalized(ctx context.Context, ev ProposalEvent) error
	PublishTerminal(ctx context.Context, ev ProposalEvent) error
	Close()
}

// NewProposalEvent builds the event for a terminal proposal snapshot.
func NewProposalEvent(p *governance.Proposal) ProposalEvent {
	approvals := make([]Approval, 0, len(p.Votes))
	for _, v := range p.Votes {
		approvals = append(approvals, Approval{
			ActorID:  v.ActorID,
			Role:     v.Role.String(),
			Decision: v.Decision,
			Weight:   v.Weight,
			At:       v.At,
		})
	}
	ev := ProposalEvent{
		EventID:       uuid.New(),
		ProposalID:    p.ID,
		ProjectID:     p.ProjectID,
		Kind:          p.Kind,
		Memo:          p.Memo,
		Status:        p.Status,
		FinalClass:    p.Class.String(),
		FinalAmount:   p.Amount,
		Deposit:       p.Deposit,
		ParamsVersion: p.Params.Version,
		Approvals:     approvals,
		Overridden:    p.Overridden,
		Reason:        p.CloseReason,
	}
	if p.ClosedAt != nil {
		ev.OccurredAt = *p.ClosedAt
	}
	return ev
}

// Dispatch routes ev to the publisher method matching its status.
func Dispatch(ctx context.Context, pub Publisher, ev ProposalEvent) error {
	if ev.Status == domain.ProposalStatusExecuted {
		return pub.PublishFinalized(ctx, ev)
	}
	return pub.PublishTerminal(ctx, ev)
}
