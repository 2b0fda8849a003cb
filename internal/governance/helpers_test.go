package governance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type savedCall struct {
	proposal *Proposal
	changes  []Change
}

type recordingPersister struct {
	mu    sync.Mutex
	saves []savedCall
	fail  error
}

func (p *recordingPersister) SaveProposal(_ context.Context, prop *Proposal, changes []Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.saves = append(p.saves, savedCall{proposal: prop.Clone(), changes: append([]Change(nil), changes...)})
	return nil
}

func (p *recordingPersister) setFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

func (p *recordingPersister) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.saves {
		for _, c := range s.changes {
			out = append(out, c.Action)
		}
	}
	return out
}

var errInjected = errors.New("injected write failure")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testParams() ParameterSet {
	return ParameterSet{
		Version: "v1",
		Standard: ClassParameters{
			QuorumFraction:   dec("0.5"),
			ApprovalFraction: dec("0.5"),
			Sponsorship:      Sponsorship{Fraction: dec("0.25"), MinWallets: 1, PerWalletMinFraction: dec("0.05")},
			TimelockHours:    48,
		},
		Major: ClassParameters{
			QuorumFraction:   dec("0.6"),
			ApprovalFraction: dec("0.66"),
			Sponsorship:      Sponsorship{Fraction: dec("0.3"), MinWallets: 2, PerWalletMinFraction: dec("0.05")},
			TimelockHours:    96,
		},
		Emergency: ClassParameters{
			QuorumFraction:   dec("0.3"),
			ApprovalFraction: dec("0.5"),
			Sponsorship:      Sponsorship{Fraction: dec("0.2"), MinWallets: 2},
			TimelockHours:    6,
		},
		VotingPeriodDays:          7,
		TreasuryMajorThresholdUSD: dec("1000000"),
		ProposalDepositUSDC:       dec("100"),
	}
}

type harness struct {
	ev        *Evaluator
	clock     *fakeClock
	persister *recordingPersister
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := rbac.NewRegistry(rbac.ApprovalLimits{
		rbac.RoleProjectManager: dec("25000"),
		rbac.RoleTreasurer:      dec("500000"),
	})
	require.NoError(t, err)
	clock := newFakeClock()
	persister := &recordingPersister{}
	return &harness{ev: NewEvaluator(reg, persister, clock.Now), clock: clock, persister: persister}
}

func (h *harness) open(t *testing.T, id, amount string, electorate map[string]int64) *Proposal {
	t.Helper()
	return h.openWith(t, OpenRequest{ID: id, Amount: domain.MustFromString(amount, domain.USD), Electorate: electorate})
}

func (h *harness) openWith(t *testing.T, req OpenRequest) *Proposal {
	t.Helper()
	if req.ProjectID == "" {
		req.ProjectID = "river-restore"
	}
	if req.Kind == "" {
		req.Kind = "payment_release"
	}
	if req.Params.Version == "" {
		req.Params = testParams()
	}
	if req.ActorID == "" {
		req.ActorID = "treasurer-1"
		req.Role = rbac.RoleTreasurer
	}
	out, err := h.ev.Open(context.Background(), req)
	require.NoError(t, err)
	return out.Proposal
}

func (h *harness) vote(id, actor string, role rbac.Role, decision string) (Outcome, error) {
	return h.ev.Vote(context.Background(), id, VoteRequest{ActorID: actor, Role: role, Decision: decision})
}
