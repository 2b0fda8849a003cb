package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one immutable row of the audit trail.
type AuditEntry struct {
	ID         uuid.UUID       `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	PrevState  string          `json:"prev_state,omitempty"`
	NextState  string          `json:"next_state,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// GovernanceVersion is a published parameter set as stored.
type GovernanceVersion struct {
	Version     string          `json:"version"`
	Params      json.RawMessage `json:"params"`
	PublishedBy string          `json:"published_by"`
	PublishedAt time.Time       `json:"published_at"`
}

// VoteRow is a persisted vote.
type VoteRow struct {
	ProposalID string    `json:"proposal_id"`
	ActorID    string    `json:"actor_id"`
	Role       string    `json:"role"`
	Decision   string    `json:"decision"`
	Weight     int64     `json:"weight"`
	Seq        int       `json:"seq"`
	VotedAt    time.Time `json:"voted_at"`
}

// ProposalRow mirrors the proposals table. Params and Electorate are JSON documents.
type ProposalRow struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	Kind           string          `json:"kind"`
	Memo           string          `json:"memo"`
	Class          string          `json:"class"`
	Emergency      bool            `json:"emergency"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	ParamsVersion  string          `json:"params_version"`
	Params         json.RawMessage `json:"params"`
	Electorate     json.RawMessage `json:"electorate"`
	Status         string          `json:"status"`
	OpenedBy       string          `json:"opened_by"`
	OpenedAt       time.Time       `json:"opened_at"`
	VotingEndsAt   time.Time       `json:"voting_ends_at"`
	ThresholdMetAt *time.Time      `json:"threshold_met_at,omitempty"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	Overridden     bool            `json:"overridden"`
	CloseReason    string          `json:"close_reason"`
	Revision       int64           `json:"revision"`
}
