package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/models"
	"github.com/ayo6706/treasury-governance/internal/repository"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It follows the same revision and
// transition rules as PostgresStore and is used when no database is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[string]*governance.Proposal
	versions  map[string]governance.ParameterSet
	order     []string
	audit     []models.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[string]*governance.Proposal),
		versions:  make(map[string]governance.ParameterSet),
	}
}

func (s *MemoryStore) SaveProposal(_ context.Context, p *governance.Proposal, changes []governance.Change) error {
	if err := validateChanges(p, changes); err != nil {
		return err
	}
	entries := make([]models.AuditEntry, 0, len(changes))
	for _, c := range changes {
		entry, err := auditEntryForChange(p, c)
		if err != nil {
			return err
		}
		entry.ID = uuid.New()
		entries = append(entries, entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.proposals[p.ID]
	switch {
	case !ok && p.Revision != 1:
		return fmt.Errorf("proposal %s revision %d: %w", p.ID, p.Revision, repository.ErrStaleRevision)
	case ok && existing.Revision != p.Revision-1:
		return fmt.Errorf("proposal %s revision %d: %w", p.ID, p.Revision, repository.ErrStaleRevision)
	}
	s.proposals[p.ID] = p.Clone()
	s.audit = append(s.audit, entries...)
	return nil
}

func (s *MemoryStore) GetProposal(_ context.Context, id string) (*governance.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrProposalNotFound)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ListOpenProposals(_ context.Context) ([]*governance.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*governance.Proposal
	for _, p := range s.proposals {
		if p.Status == domain.ProposalStatusOpen {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *MemoryStore) SaveVersion(_ context.Context, set governance.ParameterSet, publishedBy string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.versions[set.Version]; ok {
		if !existing.Equal(set) {
			return false, fmt.Errorf("version %s: %w", set.Version, domain.ErrVersionConflict)
		}
		return false, nil
	}
	s.versions[set.Version] = set
	s.order = append(s.order, set.Version)
	s.audit = append(s.audit, models.AuditEntry{
		ID:         uuid.New(),
		EntityType: entityGovernanceVersion,
		EntityID:   set.Version,
		ActorID:    publishedBy,
		Action:     domain.AuditActionVersionPublished,
		CreatedAt:  at,
	})
	return true, nil
}

func (s *MemoryStore) GetVersion(_ context.Context, version string) (governance.ParameterSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.versions[version]
	if !ok {
		return governance.ParameterSet{}, fmt.Errorf("%s: %w", version, domain.ErrVersionNotFound)
	}
	return set, nil
}

func (s *MemoryStore) ListVersions(_ context.Context) ([]governance.ParameterSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]governance.ParameterSet, 0, len(s.order))
	for _, v := range s.order {
		out = append(out, s.versions[v])
	}
	return out, nil
}

func (s *MemoryStore) ListAudit(_ context.Context, proposalID string) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AuditEntry
	for _, e := range s.audit {
		if e.EntityType == entityProposal && e.EntityID == proposalID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
