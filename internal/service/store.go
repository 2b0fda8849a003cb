package service

import (
	"context"
	"time"

	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/models"
	"github.com/ayo6706/treasury-governance/internal/repository"
)

// QueryStore defines the minimal data access contract required by the Postgres store.
type QueryStore interface {
	Queries() *repository.Queries
	RunInTx(ctx context.Context, fn func(q *repository.Queries) error) error
	Ping(ctx context.Context) error
}

// ProposalStore is the durable home of proposals, their audit trail and every
// published governance version. SaveProposal is the evaluator's durability boundary.
type ProposalStore interface {
	governance.Persister
	GetProposal(ctx context.Context, id string) (*governance.Proposal, error)
	ListOpenProposals(ctx context.Context) ([]*governance.Proposal, error)
	SaveVersion(ctx context.Context, set governance.ParameterSet, publishedBy string, at time.Time) (inserted bool, err error)
	GetVersion(ctx context.Context, version string) (governance.ParameterSet, error)
	ListVersions(ctx context.Context) ([]governance.ParameterSet, error)
	ListAudit(ctx context.Context, proposalID string) ([]models.AuditEntry, error)
	Ping(ctx context.Context) error
}
