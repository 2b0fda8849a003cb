package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/models"
	"github.com/ayo6706/treasury-governance/internal/repository"
	"github.com/jackc/pgx/v5"
)

// PostgresStore persists proposals, votes, audit rows and governance versions.
type PostgresStore struct {
	store QueryStore
	audit *AuditService
}

func NewPostgresStore(store QueryStore, audit *AuditService) *PostgresStore {
	return &PostgresStore{store: store, audit: audit}
}

// SaveProposal writes the proposal row, any new vote, and one audit row per change in
// a single transaction.
func (s *PostgresStore) SaveProposal(ctx context.Context, p *governance.Proposal, changes []governance.Change) error {
	if err := validateChanges(p, changes); err != nil {
		return err
	}
	row, err := proposalToRow(p)
	if err != nil {
		return err
	}
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		if err := qtx.UpsertProposal(ctx, row); err != nil {
			return err
		}
		for _, c := range changes {
			if c.Vote != nil {
				if err := qtx.InsertVote(ctx, voteRow(p, *c.Vote)); err != nil {
					return err
				}
			}
			entry, err := auditEntryForChange(p, c)
			if err != nil {
				return err
			}
			if err := s.audit.Write(ctx, qtx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*governance.Proposal, error) {
	q := s.store.Queries()
	row, err := q.GetProposal(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, domain.ErrProposalNotFound)
		}
		return nil, err
	}
	votes, err := q.ListVotes(ctx, id)
	if err != nil {
		return nil, err
	}
	return proposalFromRow(row, votes)
}

func (s *PostgresStore) ListOpenProposals(ctx context.Context) ([]*governance.Proposal, error) {
	q := s.store.Queries()
	rows, err := q.ListProposalsByStatus(ctx, domain.ProposalStatusOpen)
	if err != nil {
		return nil, err
	}
	out := make([]*governance.Proposal, 0, len(rows))
	for _, row := range rows {
		votes, err := q.ListVotes(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		p, err := proposalFromRow(row, votes)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SaveVersion stores set once and records the publication in the audit trail.
// inserted is false when the version already existed with identical values; a stored
// version with different values yields ErrVersionConflict.
func (s *PostgresStore) SaveVersion(ctx context.Context, set governance.ParameterSet, publishedBy string, at time.Time) (bool, error) {
	raw, err := json.Marshal(set)
	if err != nil {
		return false, fmt.Errorf("marshal governance version: %w", err)
	}
	var inserted bool
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		inserted, err = qtx.InsertGovernanceVersion(ctx, models.GovernanceVersion{
			Version:     set.Version,
			Params:      raw,
			PublishedBy: publishedBy,
			PublishedAt: at,
		})
		if err != nil {
			return err
		}
		if !inserted {
			stored, err := qtx.GetGovernanceVersion(ctx, set.Version)
			if err != nil {
				return err
			}
			existing, err := decodeVersion(stored)
			if err != nil {
				return err
			}
			if !existing.Equal(set) {
				return fmt.Errorf("version %s: %w", set.Version, domain.ErrVersionConflict)
			}
			return nil
		}
		return s.audit.Write(ctx, qtx, models.AuditEntry{
			EntityType: entityGovernanceVersion,
			EntityID:   set.Version,
			ActorID:    publishedBy,
			Action:     domain.AuditActionVersionPublished,
			Metadata:   raw,
			CreatedAt:  at,
		})
	})
	return inserted, err
}

func (s *PostgresStore) GetVersion(ctx context.Context, version string) (governance.ParameterSet, error) {
	stored, err := s.store.Queries().GetGovernanceVersion(ctx, version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return governance.ParameterSet{}, fmt.Errorf("%s: %w", version, domain.ErrVersionNotFound)
		}
		return governance.ParameterSet{}, err
	}
	return decodeVersion(stored)
}

func (s *PostgresStore) ListVersions(ctx context.Context) ([]governance.ParameterSet, error) {
	stored, err := s.store.Queries().ListGovernanceVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]governance.ParameterSet, 0, len(stored))
	for _, v := range stored {
		set, err := decodeVersion(v)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, proposalID string) ([]models.AuditEntry, error) {
	return s.store.Queries().ListAuditLog(ctx, entityProposal, proposalID)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func decodeVersion(v models.GovernanceVersion) (governance.ParameterSet, error) {
	var set governance.ParameterSet
	if err := json.Unmarshal(v.Params, &set); err != nil {
		return governance.ParameterSet{}, fmt.Errorf("decode governance version %s: %w", v.Version, err)
	}
	return set, nil
}
