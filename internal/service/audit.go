package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/models"
	"github.com/ayo6706/treasury-governance/internal/repository"
)

const (
	entityProposal          = "proposal"
	entityGovernanceVersion = "governance_version"
)

// AuditService writes immutable audit trail entries.
type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, qtx *repository.Queries, entry models.AuditEntry) error {
	if _, err := qtx.InsertAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("write audit %s for %s: %w", entry.Action, entry.EntityID, err)
	}
	return nil
}

type changeMetadata struct {
	Revision int64             `json:"revision"`
	Class    string            `json:"class"`
	Reason   string            `json:"reason,omitempty"`
	Vote     *governance.Vote  `json:"vote,omitempty"`
	Tally    *governance.Tally `json:"tally,omitempty"`
}

// auditEntryForChange renders one proposal change as an audit row.
func auditEntryForChange(p *governance.Proposal, c governance.Change) (models.AuditEntry, error) {
	meta := changeMetadata{Revision: p.Revision, Class: p.Class.String(), Reason: c.Reason, Vote: c.Vote}
	if c.Vote != nil {
		tally := p.Tally()
		meta.Tally = &tally
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("marshal audit metadata: %w", err)
	}
	return models.AuditEntry{
		EntityType: entityProposal,
		EntityID:   p.ID,
		ActorID:    c.ActorID,
		Action:     c.Action,
		PrevState:  c.PrevStatus,
		NextState:  c.NextStatus,
		Metadata:   raw,
		CreatedAt:  c.At,
	}, nil
}
