package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/events"
	"github.com/ayo6706/treasury-governance/internal/financeref"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalLifecycleIsAuditedAndPublished(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()

	p := h.create(t, "12000.00", projectTreasurerLed)
	assert.True(t, strings.HasPrefix(p.ID, "DSB-"), p.ID)
	assert.Equal(t, "river-works:INV-RIVER-0042:1.2.3", p.Memo)
	assert.Equal(t, governance.ClassStandard, p.Class)
	assert.Equal(t, "v1", p.Params.Version)
	assert.Equal(t, domain.MustFromString("100", domain.USDC), p.Deposit)

	p, err := h.svc.Vote(ctx, p.ID, treasurer, domain.DecisionApprove)
	require.NoError(t, err)
	require.NotNil(t, p.ThresholdMetAt)
	assert.Equal(t, domain.ProposalStatusOpen, p.Status)

	h.clock.Advance(47 * time.Hour)
	_, err = h.svc.Execute(ctx, p.ID, treasurer)
	require.ErrorIs(t, err, domain.ErrTimelockNotElapsed)

	h.clock.Advance(time.Hour)
	p, err = h.svc.Execute(ctx, p.ID, treasurer)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusExecuted, p.Status)

	evs := h.publisher.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, p.ID, evs[0].ProposalID)
	assert.Equal(t, "governance.proposal.executed", evs[0].Subject())
	assert.Equal(t, "v1", evs[0].ParamsVersion)
	assert.Equal(t, "100.000000 USDC", evs[0].Deposit.String())
	require.Len(t, evs[0].Approvals, 1)

	trail, err := h.svc.Audit(ctx, p.ID, auditor)
	require.NoError(t, err)
	var actions []string
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		domain.AuditActionOpened,
		domain.AuditActionVoted,
		domain.AuditActionThresholdMet,
		domain.AuditActionExecuted,
	}, actions)
	assert.Equal(t, domain.ProposalStatusOpen, trail[3].PrevState)
	assert.Equal(t, domain.ProposalStatusExecuted, trail[3].NextState)
}

func TestOpenProposalKeepsItsParameterVersion(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()

	before := h.create(t, "5000.00", projectTreasurerSlim)

	_, err := h.svc.PublishVersion(ctx, admin, paramsV2())
	require.NoError(t, err)
	after := h.create(t, "5000.00", projectTreasurerSlim)

	assert.Equal(t, "v1", before.Params.Version)
	assert.Equal(t, "v2", after.Params.Version)

	got, err := h.svc.Vote(ctx, before.ID, treasurer, domain.DecisionApprove)
	require.NoError(t, err)
	require.NotNil(t, got.ThresholdMetAt, "55 percent clears the v1 quorum")
	at, _ := got.ExecutableAt()
	assert.Equal(t, testStart.Add(48*time.Hour), at)

	got, err = h.svc.Vote(ctx, after.ID, treasurer, domain.DecisionApprove)
	require.NoError(t, err)
	assert.Nil(t, got.ThresholdMetAt, "55 percent misses the v2 quorum")

	got, err = h.svc.Vote(ctx, after.ID, pm, domain.DecisionApprove)
	require.NoError(t, err)
	require.NotNil(t, got.ThresholdMetAt)
	at, _ = got.ExecutableAt()
	assert.Equal(t, testStart.Add(24*time.Hour), at)
}

func TestPublishVersion(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()

	_, err := h.svc.PublishVersion(ctx, Actor{ID: "ops", SystemRole: rbac.SystemRolePlatformOperator}, paramsV2())
	require.ErrorIs(t, err, domain.ErrInsufficientPermission)

	_, err = h.svc.PublishVersion(ctx, admin, paramsV2())
	require.NoError(t, err)
	_, err = h.svc.PublishVersion(ctx, admin, paramsV2())
	require.NoError(t, err, "identical republish is a no-op")

	changed := paramsV1()
	changed.VotingPeriodDays = 3
	_, err = h.svc.PublishVersion(ctx, admin, changed)
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	invalid := paramsV2()
	invalid.Version = "v3"
	invalid.Major.ApprovalFraction = dec("1.5")
	_, err = h.svc.PublishVersion(ctx, admin, invalid)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	versions, current := h.svc.ListVersions()
	assert.Equal(t, "v2", current)
	require.Len(t, versions, 2)
	assert.Equal(t, "v1", versions[0].Version)

	stored, err := h.store.ListVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestVoteRejectionsLeaveNoTrace(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()
	p := h.create(t, "30000.00", projectEven)

	_, err := h.svc.Vote(ctx, p.ID, pm, domain.DecisionApprove)
	require.ErrorIs(t, err, domain.ErrAmountExceedsRoleLimit)
	_, err = h.svc.Vote(ctx, p.ID, Actor{ID: "outsider", Role: rbac.RoleTreasurer}, domain.DecisionApprove)
	require.ErrorIs(t, err, domain.ErrNotEligibleVoter)
	_, err = h.svc.Vote(ctx, p.ID, auditor, domain.DecisionApprove)
	require.ErrorIs(t, err, domain.ErrInsufficientPermission)
	_, err = h.svc.Vote(ctx, p.ID, treasurer, "MAYBE")
	require.ErrorIs(t, err, domain.ErrInvalidDecision)

	_, err = h.svc.Vote(ctx, p.ID, treasurer, domain.DecisionReject)
	require.NoError(t, err)
	_, err = h.svc.Vote(ctx, p.ID, treasurer, domain.DecisionApprove)
	require.ErrorIs(t, err, domain.ErrDuplicateApproval)
	assert.True(t, domain.IsBenign(err))

	trail, err := h.svc.Audit(ctx, p.ID, auditor)
	require.NoError(t, err)
	assert.Len(t, trail, 2, "opened and a single vote")
}

func TestCreatePermissionsAndValidation(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()

	_, err := h.svc.Create(ctx, vendor, CreateProposalInput{ProjectID: "river-restore", Kind: "payment_release", Amount: usd("10.00")})
	require.ErrorIs(t, err, domain.ErrInsufficientPermission)

	_, err = h.svc.Create(ctx, treasurer, CreateProposalInput{ProjectID: "no-such-project", Kind: "payment_release", Amount: usd("10.00")})
	require.ErrorIs(t, err, domain.ErrInvalidProposal)

	_, err = h.svc.Create(ctx, treasurer, CreateProposalInput{ProjectID: "river-restore", Kind: "payment_release", Amount: usd("10.00"), InvoiceID: "INV 1"})
	require.ErrorIs(t, err, domain.ErrMalformedReference)

	p, err := h.svc.Create(ctx, pm, CreateProposalInput{ProjectID: "river-restore", Kind: "payment_release", Amount: usd("10.00")})
	require.NoError(t, err)
	assert.Empty(t, p.Memo)
}

func TestElectorateComesFromProjectPolicy(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()

	// treasurer-1 holds 40 of 100 on river-restore, short of the 0.5 standard quorum.
	p, err := h.svc.Create(ctx, treasurer, CreateProposalInput{ProjectID: projectEven, Kind: "payment_release", Amount: usd("400000.00")})
	require.NoError(t, err)
	assert.Equal(t, governance.ClassStandard, p.Class)
	assert.Equal(t, map[string]int64{"treasurer-1": 40, "pm-1": 30, "multisig-1": 30}, p.Electorate)

	p, err = h.svc.Vote(ctx, p.ID, treasurer, domain.DecisionApprove)
	require.NoError(t, err)
	assert.Nil(t, p.ThresholdMetAt)

	h.clock.Advance(48 * time.Hour)
	_, err = h.svc.Execute(ctx, p.ID, treasurer)
	require.ErrorIs(t, err, domain.ErrThresholdNotMet)

	_, err = h.svc.Create(ctx, vendor, CreateProposalInput{ProjectID: "no-such-project", Kind: "payment_release", Amount: usd("10.00")})
	require.ErrorIs(t, err, domain.ErrInsufficientPermission)
	assert.Empty(t, h.publisher.Events())
}

func TestCreateWithoutVersion(t *testing.T) {
	svc := NewProposalService(testRegistry(t), governance.NewVersionRegistry(), testElectorates, NewMemoryStore(), &events.MemoryPublisher{}, financeref.NewDefaultGenerator(), nil)

	_, err := svc.Create(context.Background(), treasurer, CreateProposalInput{ProjectID: "p", Kind: "k", Amount: usd("1.00")})
	require.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestSweepClosesAndPublishes(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()

	passed := h.create(t, "1000.00", projectTreasurerLed)
	_, err := h.svc.Vote(ctx, passed.ID, treasurer, domain.DecisionApprove)
	require.NoError(t, err)

	quorate := h.create(t, "1000.00", projectEven)
	_, err = h.svc.Vote(ctx, quorate.ID, treasurer, domain.DecisionReject)
	require.NoError(t, err)
	_, err = h.svc.Vote(ctx, quorate.ID, pm, domain.DecisionReject)
	require.NoError(t, err)

	idle := h.create(t, "1000.00", projectEven)

	h.clock.Advance(48 * time.Hour)
	closed, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	h.clock.Advance(5 * 24 * time.Hour)
	closed, err = h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	statuses := map[string]string{}
	for _, ev := range h.publisher.Events() {
		statuses[ev.ProposalID] = ev.Status
	}
	assert.Equal(t, map[string]string{
		passed.ID:  domain.ProposalStatusExecuted,
		quorate.ID: domain.ProposalStatusRejected,
		idle.ID:    domain.ProposalStatusExpired,
	}, statuses)

	// Evicted proposals are still served from the store.
	got, err := h.svc.Get(ctx, idle.ID, auditor)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusExpired, got.Status)

	_, err = h.svc.Vote(ctx, idle.ID, treasurer, domain.DecisionApprove)
	require.ErrorIs(t, err, domain.ErrProposalAlreadyTerminal)
}

func TestOverrideIsRecordedAsOverride(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()
	p := h.create(t, "1000.00", projectEven)

	_, err := h.svc.Override(ctx, p.ID, treasurer, domain.ProposalStatusExecuted, "board decision")
	require.ErrorIs(t, err, domain.ErrInsufficientPermission)

	got, err := h.svc.Override(ctx, p.ID, multisig, domain.ProposalStatusRejected, "vendor dispute")
	require.NoError(t, err)
	assert.True(t, got.Overridden)
	assert.Equal(t, domain.ProposalStatusRejected, got.Status)

	evs := h.publisher.Events()
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Overridden)
	assert.Equal(t, "vendor dispute", evs[0].Reason)

	trail, err := h.svc.Audit(ctx, p.ID, auditor)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditActionOverrideRejected, trail[len(trail)-1].Action)
}

func TestRecoverRestoresOpenProposals(t *testing.T) {
	store := NewMemoryStore()
	first := newServiceHarness(t, store)
	ctx := context.Background()

	p := first.create(t, "1000.00", projectTreasurerLed)
	_, err := first.svc.Vote(ctx, p.ID, treasurer, domain.DecisionApprove)
	require.NoError(t, err)

	second := newServiceHarness(t, store)
	n, err := second.svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second.clock.Advance(48 * time.Hour)
	got, err := second.svc.Execute(ctx, p.ID, treasurer)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusExecuted, got.Status)
	assert.Equal(t, int64(3), got.Revision)

	// The first process holds a stale copy and cannot overwrite the newer revision.
	_, err = first.svc.Vote(ctx, p.ID, pm, domain.DecisionApprove)
	require.Error(t, err)
}

func TestGetAndAuditPermissions(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())
	ctx := context.Background()
	p := h.create(t, "1000.00", projectEven)

	_, err := h.svc.Get(ctx, p.ID, Actor{ID: "support", SystemRole: rbac.SystemRolePlatformSupport})
	require.NoError(t, err)
	_, err = h.svc.Get(ctx, p.ID, Actor{ID: "nobody"})
	require.ErrorIs(t, err, domain.ErrInsufficientPermission)
	_, err = h.svc.Get(ctx, "DSB-missing", auditor)
	require.ErrorIs(t, err, domain.ErrProposalNotFound)

	_, err = h.svc.Audit(ctx, p.ID, vendor)
	require.ErrorIs(t, err, domain.ErrInsufficientPermission)
	_, err = h.svc.Audit(ctx, p.ID, Actor{ID: "ops", SystemRole: rbac.SystemRolePlatformOperator})
	require.NoError(t, err)
}

func TestPermissionsAndDescribeRef(t *testing.T) {
	h := newServiceHarness(t, NewMemoryStore())

	role, perms, err := h.svc.Permissions("treasurer")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleTreasurer, role)
	assert.True(t, perms.CanReleasePayments)
	_, _, err = h.svc.Permissions("OWNER")
	require.ErrorIs(t, err, domain.ErrUnknownRole)

	kind, _, err := h.svc.DescribeRef("river-restore:INV-RIVER-0042")
	require.NoError(t, err)
	assert.Equal(t, "memo_tag", kind)
}

type failingPublisher struct{ events.MemoryPublisher }

func (p *failingPublisher) PublishFinalized(context.Context, events.ProposalEvent) error {
	return assert.AnError
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	clock := &testClock{now: testStart}
	store := NewMemoryStore()
	svc := NewProposalService(testRegistry(t), governance.NewVersionRegistry(), testElectorates, store, &failingPublisher{}, financeref.NewGenerator(clock, 1), clock.Now)
	ctx := context.Background()
	require.NoError(t, svc.LoadVersions(ctx, []governance.ParameterSet{paramsV1()}, "policy-file"))

	p, err := svc.Create(ctx, multisig, CreateProposalInput{ProjectID: "river-restore", Kind: "payment_release", Amount: usd("10.00")})
	require.NoError(t, err)
	got, err := svc.Override(ctx, p.ID, multisig, domain.ProposalStatusExecuted, "signed off")
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusExecuted, got.Status)

	stored, err := store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusExecuted, stored.Status)
}

func TestSweepRacingExecutePublishesOnce(t *testing.T) {
	for round := 0; round < 10; round++ {
		h := newServiceHarness(t, NewMemoryStore())
		ctx := context.Background()

		p := h.create(t, "1000.00", projectTreasurerLed)
		_, err := h.svc.Vote(ctx, p.ID, treasurer, domain.DecisionApprove)
		require.NoError(t, err)
		h.clock.Advance(48 * time.Hour)

		var (
			wg      sync.WaitGroup
			execErr error
			swept   int
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, execErr = h.svc.Execute(ctx, p.ID, treasurer)
		}()
		go func() {
			defer wg.Done()
			<-start
			swept, _ = h.svc.Sweep(ctx)
		}()
		close(start)
		wg.Wait()

		if execErr != nil {
			// Sweep won; Execute saw either the terminal state or the evicted entry.
			assert.True(t, errors.Is(execErr, domain.ErrProposalAlreadyTerminal) || errors.Is(execErr, domain.ErrProposalNotFound), execErr)
			assert.Equal(t, 1, swept)
		} else {
			assert.Equal(t, 0, swept)
		}

		evs := h.publisher.Events()
		require.Len(t, evs, 1, "round %d", round)
		assert.Equal(t, domain.ProposalStatusExecuted, evs[0].Status)

		trail, err := h.svc.Audit(ctx, p.ID, auditor)
		require.NoError(t, err)
		executed := 0
		for _, e := range trail {
			if e.Action == domain.AuditActionExecuted {
				executed++
			}
		}
		assert.Equal(t, 1, executed, "round %d", round)
	}
}
