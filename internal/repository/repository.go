package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/treasury-governance/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrStaleRevision is returned when a proposal row was changed by another writer.
var ErrStaleRevision = errors.New("proposal revision is stale")

const proposalColumns = `id, project_id, kind, memo, class, emergency, amount_minor, currency,
	params_version, params, electorate, status, opened_by, opened_at, voting_ends_at,
	threshold_met_at, closed_at, overridden, close_reason, revision`

// UpsertProposal inserts revision 1 or advances an existing row by exactly one
// revision.
func (q *Queries) UpsertProposal(ctx context.Context, p models.ProposalRow) error {
	query := `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			threshold_met_at = EXCLUDED.threshold_met_at,
			closed_at = EXCLUDED.closed_at,
			overridden = EXCLUDED.overridden,
			close_reason = EXCLUDED.close_reason,
			revision = EXCLUDED.revision,
			updated_at = NOW()
		WHERE proposals.revision = EXCLUDED.revision - 1
	`
	tag, err := q.db.Exec(ctx, query,
		p.ID, p.ProjectID, p.Kind, p.Memo, p.Class, p.Emergency, p.AmountMinor, p.Currency,
		p.ParamsVersion, p.Params, p.Electorate, p.Status, p.OpenedBy, p.OpenedAt, p.VotingEndsAt,
		p.ThresholdMetAt, p.ClosedAt, p.Overridden, p.CloseReason, p.Revision,
	)
	if err != nil {
		return fmt.Errorf("upsert proposal: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("proposal %s revision %d: %w", p.ID, p.Revision, ErrStaleRevision)
	}
	return nil
}

func (q *Queries) GetProposal(ctx context.Context, id string) (models.ProposalRow, error) {
	row := q.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		return models.ProposalRow{}, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// ListProposalsByStatus returns proposals in status ordered by opening time.
func (q *Queries) ListProposalsByStatus(ctx context.Context, status string) ([]models.ProposalRow, error) {
	rows, err := q.db.Query(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE status = $1 ORDER BY opened_at`, status)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []models.ProposalRow
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProposal(row pgx.Row) (models.ProposalRow, error) {
	var p models.ProposalRow
	err := row.Scan(
		&p.ID, &p.ProjectID, &p.Kind, &p.Memo, &p.Class, &p.Emergency, &p.AmountMinor, &p.Currency,
		&p.ParamsVersion, &p.Params, &p.Electorate, &p.Status, &p.OpenedBy, &p.OpenedAt, &p.VotingEndsAt,
		&p.ThresholdMetAt, &p.ClosedAt, &p.Overridden, &p.CloseReason, &p.Revision,
	)
	return p, err
}

// InsertVote appends a vote. The primary key rejects a second vote by the same actor.
func (q *Queries) InsertVote(ctx context.Context, v models.VoteRow) error {
	query := `
		INSERT INTO proposal_votes (proposal_id, actor_id, role, decision, weight, seq, voted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := q.db.Exec(ctx, query, v.ProposalID, v.ActorID, v.Role, v.Decision, v.Weight, v.Seq, v.VotedAt); err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (q *Queries) ListVotes(ctx context.Context, proposalID string) ([]models.VoteRow, error) {
	query := `
		SELECT proposal_id, actor_id, role, decision, weight, seq, voted_at
		FROM proposal_votes
		WHERE proposal_id = $1
		ORDER BY seq
	`
	rows, err := q.db.Query(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var out []models.VoteRow
	for rows.Next() {
		var v models.VoteRow
		if err := rows.Scan(&v.ProposalID, &v.ActorID, &v.Role, &v.Decision, &v.Weight, &v.Seq, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// InsertAuditLog writes one audit row; ID and CreatedAt are filled when zero.
func (q *Queries) InsertAuditLog(ctx context.Context, e models.AuditEntry) (models.AuditEntry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO audit_log (id, entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query,
		e.ID, e.EntityType, e.EntityID, nullText(e.ActorID), e.Action,
		nullText(e.PrevState), nullText(e.NextState), nullJSON(e.Metadata), nullTime(e.CreatedAt),
	).Scan(&e.CreatedAt)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("insert audit log: %w", err)
	}
	return e, nil
}

func (q *Queries) ListAuditLog(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, COALESCE(actor_id, ''), action,
			COALESCE(prev_state, ''), COALESCE(next_state, ''), COALESCE(metadata, '{}'::jsonb), created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id
	`
	rows, err := q.db.Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.ActorID, &e.Action, &e.PrevState, &e.NextState, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertGovernanceVersion stores a version once. inserted is false when the version
// already exists; the stored row is left untouched.
func (q *Queries) InsertGovernanceVersion(ctx context.Context, v models.GovernanceVersion) (inserted bool, err error) {
	query := `
		INSERT INTO governance_versions (version, params, published_by, published_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (version) DO NOTHING
	`
	tag, err := q.db.Exec(ctx, query, v.Version, v.Params, v.PublishedBy, v.PublishedAt)
	if err != nil {
		return false, fmt.Errorf("insert governance version: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) GetGovernanceVersion(ctx context.Context, version string) (models.GovernanceVersion, error) {
	var v models.GovernanceVersion
	err := q.db.QueryRow(ctx,
		`SELECT version, params, published_by, published_at FROM governance_versions WHERE version = $1`, version,
	).Scan(&v.Version, &v.Params, &v.PublishedBy, &v.PublishedAt)
	if err != nil {
		return models.GovernanceVersion{}, fmt.Errorf("get governance version: %w", err)
	}
	return v, nil
}

// ListGovernanceVersions returns every version in publication order.
func (q *Queries) ListGovernanceVersions(ctx context.Context) ([]models.GovernanceVersion, error) {
	rows, err := q.db.Query(ctx, `SELECT version, params, published_by, published_at FROM governance_versions ORDER BY published_at, version`)
	if err != nil {
		return nil, fmt.Errorf("list governance versions: %w", err)
	}
	defer rows.Close()

	var out []models.GovernanceVersion
	for rows.Next() {
		var v models.GovernanceVersion
		if err := rows.Scan(&v.Version, &v.Params, &v.PublishedBy, &v.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan governance version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
