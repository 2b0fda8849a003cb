package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/events"
	"github.com/ayo6706/treasury-governance/internal/financeref"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/models"
	"github.com/ayo6706/treasury-governance/internal/observability"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Actor is an identity already verified by the upstream auth collaborator.
type Actor struct {
	ID         string
	Role       rbac.Role
	SystemRole rbac.SystemRole
}

// CreateProposalInput describes a financial action that needs collective approval.
// The electorate is resolved from the project, never supplied by the proposer.
type CreateProposalInput struct {
	ProjectID string
	Kind      string
	Amount    domain.Money
	ClassHint governance.ProposalClass
	Emergency bool
	InvoiceID string
	WBS       string
}

// ProposalService drives the evaluator, makes every transition durable and announces
// terminal proposals.
type ProposalService struct {
	evaluator   *governance.Evaluator
	versions    *governance.VersionRegistry
	electorates governance.ElectorateSource
	registry    *rbac.Registry
	store       ProposalStore
	publisher   events.Publisher
	refs        *financeref.Generator
	tracer      trace.Tracer
	now         func() time.Time
}

// NewProposalService wires the evaluator to store. now may be nil.
func NewProposalService(registry *rbac.Registry, versions *governance.VersionRegistry, electorates governance.ElectorateSource, store ProposalStore, publisher events.Publisher, refs *financeref.Generator, now func() time.Time) *ProposalService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ProposalService{
		evaluator:   governance.NewEvaluator(registry, store, now),
		versions:    versions,
		electorates: electorates,
		registry:    registry,
		store:       store,
		publisher:   publisher,
		refs:        refs,
		tracer:      observability.Tracer(),
		now:         now,
	}
}

// Recover loads every open proposal from the store into the evaluator.
func (s *ProposalService) Recover(ctx context.Context) (int, error) {
	open, err := s.store.ListOpenProposals(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open proposals: %w", err)
	}
	restored := 0
	for _, p := range open {
		if err := s.evaluator.Restore(p); err != nil {
			if errors.Is(err, domain.ErrProposalExists) {
				continue
			}
			return restored, err
		}
		restored++
	}
	observability.SetOpenProposals(len(s.evaluator.IDs()))
	return restored, nil
}

func (s *ProposalService) Create(ctx context.Context, actor Actor, in CreateProposalInput) (_ *governance.Proposal, err error) {
	ctx, span := s.tracer.Start(ctx, "ProposalService.Create", trace.WithAttributes(
		attribute.String("project.id", in.ProjectID),
		attribute.String("actor.role", actor.Role.String()),
	))
	defer func() { endSpan(span, err) }()

	params, err := s.versions.Current()
	if err != nil {
		return nil, fmt.Errorf("current governance version: %w", err)
	}

	// Resolving the electorate must not tell an unauthorized caller which projects exist.
	if !s.registry.HasCapability(actor.Role, rbac.CanCreateProposals) {
		err = fmt.Errorf("%s cannot create proposals: %w", actor.Role, domain.ErrInsufficientPermission)
		logRejection("create proposal", "", actor, err)
		return nil, err
	}
	projectID := strings.TrimSpace(in.ProjectID)
	electorate, err := s.electorates.Electorate(ctx, projectID)
	if err != nil {
		logRejection("create proposal", "", actor, err)
		return nil, err
	}

	var memo string
	if in.InvoiceID != "" {
		memo, err = financeref.GenerateMemoTag(in.ProjectID, in.InvoiceID, in.WBS)
		if err != nil {
			return nil, err
		}
	}

	out, err := s.evaluator.Open(ctx, governance.OpenRequest{
		ID:         s.refs.DisbursementRef().String(),
		ProjectID:  projectID,
		Kind:       strings.TrimSpace(in.Kind),
		Memo:       memo,
		Amount:     in.Amount,
		Emergency:  in.Emergency,
		ClassHint:  in.ClassHint,
		Params:     params,
		Electorate: electorate,
		ActorID:    actor.ID,
		Role:       actor.Role,
	})
	if err != nil {
		logRejection("create proposal", "", actor, err)
		return nil, err
	}
	s.afterCommit(ctx, out)

	p := out.Proposal
	span.SetAttributes(attribute.String("proposal.id", p.ID), attribute.String("proposal.class", p.Class.String()))
	zap.L().Info("proposal opened",
		zap.String("proposal_id", p.ID),
		zap.String("project_id", p.ProjectID),
		zap.String("class", p.Class.String()),
		zap.String("amount", p.Amount.String()),
		zap.String("params_version", p.Params.Version),
		zap.String("actor_id", actor.ID),
	)
	return p, nil
}

func (s *ProposalService) Vote(ctx context.Context, id string, actor Actor, decision string) (_ *governance.Proposal, err error) {
	ctx, span := s.startProposalSpan(ctx, "ProposalService.Vote", id, actor)
	defer func() { endSpan(span, err) }()

	if err := s.ensureLoaded(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.evaluator.Vote(ctx, id, governance.VoteRequest{ActorID: actor.ID, Role: actor.Role, Decision: decision})
	s.afterCommit(ctx, out)

	class := ""
	if out.Proposal != nil {
		class = out.Proposal.Class.String()
	}
	if err != nil {
		observability.IncrementVote(class, voteOutcome(err))
		logRejection("vote", id, actor, err)
		return out.Proposal, err
	}
	observability.IncrementVote(class, "accepted")
	return out.Proposal, nil
}

func (s *ProposalService) Execute(ctx context.Context, id string, actor Actor) (_ *governance.Proposal, err error) {
	ctx, span := s.startProposalSpan(ctx, "ProposalService.Execute", id, actor)
	defer func() { endSpan(span, err) }()

	if err := s.ensureLoaded(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.evaluator.Execute(ctx, id, governance.ExecuteRequest{ActorID: actor.ID, Role: actor.Role})
	s.afterCommit(ctx, out)
	if err != nil {
		logRejection("execute", id, actor, err)
		return out.Proposal, err
	}
	return out.Proposal, nil
}

func (s *ProposalService) Override(ctx context.Context, id string, actor Actor, status, reason string) (_ *governance.Proposal, err error) {
	ctx, span := s.startProposalSpan(ctx, "ProposalService.Override", id, actor)
	defer func() { endSpan(span, err) }()

	if err := s.ensureLoaded(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.evaluator.Override(ctx, id, governance.OverrideRequest{ActorID: actor.ID, Role: actor.Role, Status: status, Reason: reason})
	s.afterCommit(ctx, out)
	if err != nil {
		logRejection("override", id, actor, err)
		return nil, err
	}
	observability.IncrementOverride(out.Proposal.Status)
	return out.Proposal, nil
}

// Get returns the current state of a proposal, live or historical.
func (s *ProposalService) Get(ctx context.Context, id string, actor Actor) (*governance.Proposal, error) {
	if !s.registry.HasCapability(actor.Role, rbac.CanViewProject) &&
		!s.registry.HasSystemCapability(actor.SystemRole, rbac.CanViewAllProjects) {
		return nil, fmt.Errorf("%s cannot view proposals: %w", actor.Role, domain.ErrInsufficientPermission)
	}
	if p, err := s.evaluator.Get(id); err == nil {
		return p, nil
	} else if !errors.Is(err, domain.ErrProposalNotFound) {
		return nil, err
	}
	return s.store.GetProposal(ctx, id)
}

// Audit returns the audit trail of a proposal.
func (s *ProposalService) Audit(ctx context.Context, id string, actor Actor) ([]models.AuditEntry, error) {
	if !s.registry.HasCapability(actor.Role, rbac.CanViewAuditTrail) &&
		!s.registry.HasSystemCapability(actor.SystemRole, rbac.CanViewSystemAudit) {
		return nil, fmt.Errorf("%s cannot view the audit trail: %w", actor.Role, domain.ErrInsufficientPermission)
	}
	if _, err := s.store.GetProposal(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, id)
}

// Sweep runs one timelock sweep and returns the number of proposals it closed.
func (s *ProposalService) Sweep(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ProposalService.Sweep")
	outs, err := s.evaluator.Sweep(ctx)
	for _, out := range outs {
		s.afterCommit(ctx, out)
	}
	span.SetAttributes(attribute.Int("sweep.closed", len(outs)))
	endSpan(span, err)
	observability.SetOpenProposals(len(s.evaluator.IDs()))
	return len(outs), err
}

// Ping reports whether the backing store is reachable.
func (s *ProposalService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ensureLoaded restores a proposal the evaluator does not hold, such as one closed
// and evicted earlier or opened by a previous process.
func (s *ProposalService) ensureLoaded(ctx context.Context, id string) error {
	if _, err := s.evaluator.Get(id); err == nil {
		return nil
	}
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return err
	}
	if err := s.evaluator.Restore(p); err != nil && !errors.Is(err, domain.ErrProposalExists) {
		return err
	}
	return nil
}

// afterCommit records metrics for committed changes and publishes terminal events.
// Publishing happens after the transition is durable; a failed publish is logged and
// counted, never rolled back.
func (s *ProposalService) afterCommit(ctx context.Context, out governance.Outcome) {
	for _, c := range out.Changes {
		observability.IncrementTransition(c.Action)
	}
	if !out.Terminal() {
		return
	}
	p := out.Proposal
	zap.L().Info("proposal closed",
		zap.String("proposal_id", p.ID),
		zap.String("status", p.Status),
		zap.Bool("overridden", p.Overridden),
		zap.String("reason", p.CloseReason),
	)
	if err := events.Dispatch(ctx, s.publisher, events.NewProposalEvent(p)); err != nil {
		observability.IncrementEventPublish(p.Status, "failed")
		zap.L().Error("publish proposal event failed", zap.String("proposal_id", p.ID), zap.Error(err))
		return
	}
	observability.IncrementEventPublish(p.Status, "success")
}

func (s *ProposalService) startProposalSpan(ctx context.Context, name, id string, actor Actor) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("proposal.id", id),
		attribute.String("actor.role", actor.Role.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !isPolicyError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var policyErrors = []error{
	domain.ErrCurrencyMismatch,
	domain.ErrUnknownRole,
	domain.ErrInsufficientPermission,
	domain.ErrAmountExceedsRoleLimit,
	domain.ErrDuplicateApproval,
	domain.ErrNotEligibleVoter,
	domain.ErrTimelockNotElapsed,
	domain.ErrThresholdNotMet,
	domain.ErrMalformedReference,
	domain.ErrProposalNotFound,
	domain.ErrProposalExpired,
	domain.ErrProposalAlreadyTerminal,
	domain.ErrInvalidProposal,
	domain.ErrInvalidDecision,
	domain.ErrInvalidParameters,
	domain.ErrVersionConflict,
	domain.ErrVersionNotFound,
}

// isPolicyError reports whether err is an expected rejection rather than a fault.
func isPolicyError(err error) bool {
	for _, target := range policyErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logRejection(op, id string, actor Actor, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("proposal_id", id),
		zap.String("actor_id", actor.ID),
		zap.String("role", actor.Role.String()),
		zap.Error(err),
	}
	switch {
	case domain.IsBenign(err):
		zap.L().Info("idempotent proposal request", fields...)
	case isPolicyError(err):
		zap.L().Info("proposal request rejected", fields...)
	default:
		zap.L().Error("proposal request failed", fields...)
	}
}

func voteOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateApproval):
		return "duplicate"
	case errors.Is(err, domain.ErrAmountExceedsRoleLimit):
		return "over_limit"
	case errors.Is(err, domain.ErrInsufficientPermission), errors.Is(err, domain.ErrNotEligibleVoter):
		return "forbidden"
	case errors.Is(err, domain.ErrProposalExpired), errors.Is(err, domain.ErrProposalAlreadyTerminal):
		return "closed"
	case isPolicyError(err):
		return "rejected"
	default:
		return "error"
	}
}
