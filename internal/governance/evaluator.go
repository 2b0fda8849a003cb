package governance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"go.uber.org/zap"
)

// Persister makes a decided transition durable. The evaluator only publishes the new
// proposal state after SaveProposal returns nil.
type Persister interface {
	SaveProposal(ctx context.Context, p *Proposal, changes []Change) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, p *Proposal, changes []Change) error

func (f PersisterFunc) SaveProposal(ctx context.Context, p *Proposal, changes []Change) error {
	return f(ctx, p, changes)
}

// OpenRequest describes a proposal to open.
type OpenRequest struct {
	ID         string
	ProjectID  string
	Kind       string
	Memo       string
	Amount     domain.Money
	Emergency  bool
	ClassHint  ProposalClass
	Params     ParameterSet
	Electorate map[string]int64
	ActorID    string
	Role       rbac.Role
}

// VoteRequest is an already-authenticated actor casting a decision.
type VoteRequest struct {
	ActorID  string
	Role     rbac.Role
	Decision string
}

// ExecuteRequest asks for a passed proposal to be executed once its timelock elapsed.
type ExecuteRequest struct {
	ActorID string
	Role    rbac.Role
}

// OverrideRequest forces a terminal status, bypassing thresholds and timelock.
type OverrideRequest struct {
	ActorID string
	Role    rbac.Role
	Status  string
	Reason  string
}

type entry struct {
	// ticket admits one writer at a time; capacity 1.
	ticket   chan struct{}
	mu       sync.RWMutex
	proposal *Proposal
	// opening reserves the id while the first write is in flight. Guarded by
	// Evaluator.mu; such an entry is invisible to readers and writers.
	opening bool
}

func newEntry(p *Proposal) *entry {
	return &entry{ticket: make(chan struct{}, 1), proposal: p}
}

func (en *entry) acquire(ctx context.Context) error {
	select {
	case en.ticket <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (en *entry) release() { <-en.ticket }

func (en *entry) snapshot() *Proposal {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return en.proposal.Clone()
}

// Evaluator owns the in-memory state of live proposals and serializes every write to
// a proposal through that proposal's ticket. Distinct proposals never contend.
type Evaluator struct {
	registry  *rbac.Registry
	persister Persister
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewEvaluator(registry *rbac.Registry, persister Persister, now func() time.Time) *Evaluator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Evaluator{
		registry:  registry,
		persister: persister,
		now:       now,
		entries:   make(map[string]*entry),
	}
}

// Open classifies and registers a new proposal, pinning req.Params on it. The id is
// reserved at once, but the proposal only becomes visible once its first write is
// durable.
func (e *Evaluator) Open(ctx context.Context, req OpenRequest) (Outcome, error) {
	if !e.registry.HasCapability(req.Role, rbac.CanCreateProposals) {
		return Outcome{}, fmt.Errorf("%s cannot create proposals: %w", req.Role, domain.ErrInsufficientPermission)
	}
	if err := req.Params.Validate(); err != nil {
		return Outcome{}, err
	}
	if !req.Amount.Currency.Valid() {
		return Outcome{}, fmt.Errorf("%w: unsupported currency %q", domain.ErrInvalidProposal, req.Amount.Currency)
	}
	class, err := Classify(req.Amount, req.Emergency, req.ClassHint, req.Params)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", domain.ErrInvalidProposal, err)
	}
	deposit, err := req.Params.Deposit()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: deposit of %s: %v", domain.ErrInvalidParameters, req.Params.Version, err)
	}

	now := e.now()
	electorate := make(map[string]int64, len(req.Electorate))
	for actor, w := range req.Electorate {
		electorate[actor] = w
	}
	p := &Proposal{
		ID:           req.ID,
		ProjectID:    req.ProjectID,
		Kind:         req.Kind,
		Memo:         req.Memo,
		Class:        class,
		Emergency:    req.Emergency || class == ClassEmergency,
		Amount:       req.Amount,
		Params:       req.Params,
		Deposit:      deposit,
		Electorate:   electorate,
		Votes:        []Vote{},
		Status:       domain.ProposalStatusOpen,
		OpenedBy:     req.ActorID,
		OpenedAt:     now,
		VotingEndsAt: now.Add(req.Params.VotingPeriod()),
		Revision:     1,
	}
	if err := p.validate(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", domain.ErrInvalidProposal, err)
	}

	en := newEntry(p)
	en.opening = true
	en.ticket <- struct{}{}
	defer en.release()

	e.mu.Lock()
	if _, exists := e.entries[p.ID]; exists {
		e.mu.Unlock()
		return Outcome{}, fmt.Errorf("%s: %w", p.ID, domain.ErrProposalExists)
	}
	e.entries[p.ID] = en
	e.mu.Unlock()

	changes := []Change{{
		Action:     domain.AuditActionOpened,
		ActorID:    req.ActorID,
		NextStatus: domain.ProposalStatusOpen,
		Reason:     fmt.Sprintf("class=%s params=%s deposit=%s", class, req.Params.Version, deposit.Format()),
		At:         now,
	}}
	err = e.persister.SaveProposal(ctx, p, changes)
	e.mu.Lock()
	if err != nil {
		delete(e.entries, p.ID)
	} else {
		en.opening = false
	}
	e.mu.Unlock()
	if err != nil {
		return Outcome{}, fmt.Errorf("persist opened proposal %s: %w", p.ID, err)
	}
	return Outcome{Proposal: p.Clone(), Changes: changes}, nil
}

// Restore loads an already-persisted proposal into memory without writing it.
func (e *Evaluator) Restore(p *Proposal) error {
	if p == nil {
		return fmt.Errorf("%w: nil proposal", domain.ErrInvalidProposal)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.entries[p.ID]; exists {
		return fmt.Errorf("%s: %w", p.ID, domain.ErrProposalExists)
	}
	e.entries[p.ID] = newEntry(p.Clone())
	return nil
}

// Get returns a copy of the current committed state.
func (e *Evaluator) Get(id string) (*Proposal, error) {
	en, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return en.snapshot(), nil
}

// IDs returns the ids of proposals held in memory.
func (e *Evaluator) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.entries))
	for id, en := range e.entries {
		if !en.opening {
			ids = append(ids, id)
		}
	}
	return ids
}

// Vote records a decision after the permission, limit, eligibility and duplicate
// gates pass, then re-evaluates thresholds. A vote arriving after the voting period
// fails with ErrProposalExpired; the closeout it triggers is still committed and
// returned in the outcome.
func (e *Evaluator) Vote(ctx context.Context, id string, req VoteRequest) (Outcome, error) {
	decision := strings.ToUpper(strings.TrimSpace(req.Decision))
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		return Outcome{}, fmt.Errorf("%w: %q", domain.ErrInvalidDecision, req.Decision)
	}

	return e.mutate(ctx, id, func(p *Proposal, now time.Time) ([]Change, error) {
		if p.Terminal() {
			return nil, fmt.Errorf("%s is %s: %w", p.ID, p.Status, domain.ErrProposalAlreadyTerminal)
		}
		if p.votingClosed(now) {
			var changes []Change
			if p.ThresholdMetAt == nil {
				changes = append(changes, p.closeVoting(now))
			}
			return changes, fmt.Errorf("%s voting ended %s: %w", p.ID, p.VotingEndsAt.Format(time.RFC3339), domain.ErrProposalExpired)
		}
		if err := e.authorizeVote(req.Role, p.Amount); err != nil {
			return nil, err
		}
		weight, eligible := p.Electorate[req.ActorID]
		if !eligible {
			return nil, fmt.Errorf("%s on %s: %w", req.ActorID, p.ID, domain.ErrNotEligibleVoter)
		}
		if p.hasVoted(req.ActorID) {
			return nil, fmt.Errorf("%s on %s: %w", req.ActorID, p.ID, domain.ErrDuplicateApproval)
		}

		v := Vote{ActorID: req.ActorID, Role: req.Role, Decision: decision, Weight: weight, At: now}
		p.Votes = append(p.Votes, v)
		voted := p.change(domain.AuditActionVoted, req.ActorID, p.Status, now)
		voted.Vote = &v
		return append([]Change{voted}, p.reevaluate(now)...), nil
	})
}

func (e *Evaluator) authorizeVote(role rbac.Role, amount domain.Money) error {
	perms := e.registry.PermissionsFor(role)
	tier, ok := rbac.ApprovalTier(perms)
	if !ok || !perms.CanVoteOnProposals {
		return fmt.Errorf("%s cannot approve proposals: %w", role, domain.ErrInsufficientPermission)
	}
	limit, bounded := e.registry.ApprovalLimit(role, amount.Currency)
	if !bounded {
		return nil
	}
	cmp, err := amount.Compare(limit)
	if err != nil {
		return err
	}
	if cmp > 0 {
		return fmt.Errorf("%s (%s) limit %s, amount %s: %w", role, tier, limit.Format(), amount.Format(), domain.ErrAmountExceedsRoleLimit)
	}
	return nil
}

// Execute moves a passed proposal to EXECUTED once its timelock has elapsed.
func (e *Evaluator) Execute(ctx context.Context, id string, req ExecuteRequest) (Outcome, error) {
	if !e.registry.HasCapability(req.Role, rbac.CanReleasePayments) {
		return Outcome{}, fmt.Errorf("%s cannot execute proposals: %w", req.Role, domain.ErrInsufficientPermission)
	}
	return e.mutate(ctx, id, func(p *Proposal, now time.Time) ([]Change, error) {
		if p.Terminal() {
			return nil, fmt.Errorf("%s is %s: %w", p.ID, p.Status, domain.ErrProposalAlreadyTerminal)
		}
		at, met := p.ExecutableAt()
		if !met {
			if p.votingClosed(now) {
				return []Change{p.closeVoting(now)}, fmt.Errorf("%s: %w", p.ID, domain.ErrProposalExpired)
			}
			return nil, fmt.Errorf("%s: %w", p.ID, domain.ErrThresholdNotMet)
		}
		if now.Before(at) {
			return nil, fmt.Errorf("%s executable at %s: %w", p.ID, at.Format(time.RFC3339), domain.ErrTimelockNotElapsed)
		}
		return []Change{p.close(domain.ProposalStatusExecuted, domain.AuditActionExecuted, req.ActorID, "executed after timelock", now)}, nil
	})
}

// Override forces EXECUTED or REJECTED. It is recorded as an override action, never
// as an organic execution or rejection.
func (e *Evaluator) Override(ctx context.Context, id string, req OverrideRequest) (Outcome, error) {
	if !e.registry.HasCapability(req.Role, rbac.CanOverrideApprovals) {
		return Outcome{}, fmt.Errorf("%s cannot override approvals: %w", req.Role, domain.ErrInsufficientPermission)
	}
	var action string
	switch strings.ToUpper(strings.TrimSpace(req.Status)) {
	case domain.ProposalStatusExecuted:
		action = domain.AuditActionOverrideExecuted
	case domain.ProposalStatusRejected:
		action = domain.AuditActionOverrideRejected
	default:
		return Outcome{}, fmt.Errorf("%w: override status %q", domain.ErrInvalidDecision, req.Status)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return Outcome{}, fmt.Errorf("%w: override reason is required", domain.ErrInvalidDecision)
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))

	out, err := e.mutate(ctx, id, func(p *Proposal, now time.Time) ([]Change, error) {
		if p.Terminal() {
			return nil, fmt.Errorf("%s is %s: %w", p.ID, p.Status, domain.ErrProposalAlreadyTerminal)
		}
		p.Overridden = true
		return []Change{p.close(status, action, req.ActorID, req.Reason, now)}, nil
	})
	if err == nil {
		zap.L().Warn("proposal overridden",
			zap.String("proposal_id", id),
			zap.String("actor_id", req.ActorID),
			zap.String("role", req.Role.String()),
			zap.String("status", status),
			zap.String("reason", req.Reason),
		)
	}
	return out, err
}

// Sweep executes proposals whose timelock has elapsed and closes proposals whose
// voting period ended without passing. It takes each proposal's ticket exactly as a
// vote or manual execution would. Terminal entries are evicted afterwards.
func (e *Evaluator) Sweep(ctx context.Context) ([]Outcome, error) {
	var (
		outcomes []Outcome
		errs     []error
	)
	for _, id := range e.IDs() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := e.mutate(ctx, id, func(p *Proposal, now time.Time) ([]Change, error) {
			if p.Terminal() {
				return nil, nil
			}
			if at, ok := p.ExecutableAt(); ok {
				if now.Before(at) {
					return nil, nil
				}
				return []Change{p.close(domain.ProposalStatusExecuted, domain.AuditActionExecuted, "", "timelock elapsed", now)}, nil
			}
			if p.votingClosed(now) {
				return []Change{p.closeVoting(now)}, nil
			}
			return nil, nil
		})
		if err != nil {
			if !errors.Is(err, domain.ErrProposalNotFound) {
				errs = append(errs, fmt.Errorf("sweep %s: %w", id, err))
			}
			continue
		}
		if len(out.Changes) > 0 {
			outcomes = append(outcomes, out)
		}
		e.evictTerminal(id)
	}
	return outcomes, errors.Join(errs...)
}

// evictTerminal drops a terminal proposal from memory if no writer holds it.
func (e *Evaluator) evictTerminal(id string) {
	en, err := e.lookup(id)
	if err != nil {
		return
	}
	select {
	case en.ticket <- struct{}{}:
	default:
		return
	}
	defer en.release()
	if !en.snapshot().Terminal() {
		return
	}
	e.mu.Lock()
	if e.entries[id] == en {
		delete(e.entries, id)
	}
	e.mu.Unlock()
}

func (e *Evaluator) lookup(id string) (*entry, error) {
	e.mu.RLock()
	en, ok := e.entries[id]
	if ok && en.opening {
		ok = false
	}
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrProposalNotFound)
	}
	return en, nil
}

// mutate runs fn against a copy of the proposal while holding its ticket. Changes
// are persisted before the copy replaces the committed state; a failed write leaves
// the committed state untouched. fn may return changes together with an error, in
// which case the changes are committed and the error is still returned.
func (e *Evaluator) mutate(ctx context.Context, id string, fn func(p *Proposal, now time.Time) ([]Change, error)) (Outcome, error) {
	en, err := e.lookup(id)
	if err != nil {
		return Outcome{}, err
	}
	if err := en.acquire(ctx); err != nil {
		return Outcome{}, fmt.Errorf("wait for proposal %s: %w", id, err)
	}
	defer en.release()

	draft := en.snapshot()
	now := e.now()
	changes, fnErr := fn(draft, now)
	if len(changes) == 0 {
		return Outcome{Proposal: draft}, fnErr
	}

	draft.Revision++
	if err := e.persister.SaveProposal(ctx, draft, changes); err != nil {
		return Outcome{}, fmt.Errorf("persist proposal %s: %w", id, err)
	}

	en.mu.Lock()
	en.proposal = draft
	en.mu.Unlock()
	return Outcome{Proposal: draft.Clone(), Changes: changes}, fnErr
}
