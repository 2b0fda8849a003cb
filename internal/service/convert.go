package service

import (
	"encoding/json"
	"fmt"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/models"
	"github.com/ayo6706/treasury-governance/internal/rbac"
)

func proposalToRow(p *governance.Proposal) (models.ProposalRow, error) {
	params, err := json.Marshal(p.Params)
	if err != nil {
		return models.ProposalRow{}, fmt.Errorf("marshal params: %w", err)
	}
	electorate, err := json.Marshal(p.Electorate)
	if err != nil {
		return models.ProposalRow{}, fmt.Errorf("marshal electorate: %w", err)
	}
	return models.ProposalRow{
		ID:             p.ID,
		ProjectID:      p.ProjectID,
		Kind:           p.Kind,
		Memo:           p.Memo,
		Class:          p.Class.String(),
		Emergency:      p.Emergency,
		AmountMinor:    p.Amount.Amount,
		Currency:       string(p.Amount.Currency),
		ParamsVersion:  p.Params.Version,
		Params:         params,
		Electorate:     electorate,
		Status:         p.Status,
		OpenedBy:       p.OpenedBy,
		OpenedAt:       p.OpenedAt,
		VotingEndsAt:   p.VotingEndsAt,
		ThresholdMetAt: p.ThresholdMetAt,
		ClosedAt:       p.ClosedAt,
		Overridden:     p.Overridden,
		CloseReason:    p.CloseReason,
		Revision:       p.Revision,
	}, nil
}

func proposalFromRow(row models.ProposalRow, votes []models.VoteRow) (*governance.Proposal, error) {
	class, err := governance.ParseClass(row.Class)
	if err != nil {
		return nil, err
	}
	currency, err := domain.ParseCurrency(row.Currency)
	if err != nil {
		return nil, err
	}
	p := &governance.Proposal{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		Kind:           row.Kind,
		Memo:           row.Memo,
		Class:          class,
		Emergency:      row.Emergency,
		Amount:         domain.NewMoney(row.AmountMinor, currency),
		Status:         row.Status,
		OpenedBy:       row.OpenedBy,
		OpenedAt:       row.OpenedAt,
		VotingEndsAt:   row.VotingEndsAt,
		ThresholdMetAt: row.ThresholdMetAt,
		ClosedAt:       row.ClosedAt,
		Overridden:     row.Overridden,
		CloseReason:    row.CloseReason,
		Revision:       row.Revision,
		Votes:          make([]governance.Vote, 0, len(votes)),
	}
	if err := json.Unmarshal(row.Params, &p.Params); err != nil {
		return nil, fmt.Errorf("decode params of %s: %w", row.ID, err)
	}
	// The deposit is fixed by the pinned parameter set, so it is derived, not stored.
	if p.Deposit, err = p.Params.Deposit(); err != nil {
		return nil, fmt.Errorf("deposit of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Electorate, &p.Electorate); err != nil {
		return nil, fmt.Errorf("decode electorate of %s: %w", row.ID, err)
	}
	for _, v := range votes {
		role, err := rbac.ParseRole(v.Role)
		if err != nil {
			return nil, fmt.Errorf("vote by %s on %s: %w", v.ActorID, row.ID, err)
		}
		p.Votes = append(p.Votes, governance.Vote{
			ActorID:  v.ActorID,
			Role:     role,
			Decision: v.Decision,
			Weight:   v.Weight,
			At:       v.VotedAt,
		})
	}
	return p, nil
}

func voteRow(p *governance.Proposal, v governance.Vote) models.VoteRow {
	seq := len(p.Votes)
	for i, existing := range p.Votes {
		if existing.ActorID == v.ActorID {
			seq = i
			break
		}
	}
	return models.VoteRow{
		ProposalID: p.ID,
		ActorID:    v.ActorID,
		Role:       v.Role.String(),
		Decision:   v.Decision,
		Weight:     v.Weight,
		Seq:        seq,
		VotedAt:    v.At,
	}
}
