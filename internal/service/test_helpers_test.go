package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/events"
	"github.com/ayo6706/treasury-governance/internal/financeref"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"github.com/ayo6706/treasury-governance/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func usd(s string) domain.Money { return domain.MustFromString(s, domain.USD) }

func paramsV1() governance.ParameterSet {
	return governance.ParameterSet{
		Version: "v1",
		Standard: governance.ClassParameters{
			QuorumFraction:   dec("0.5"),
			ApprovalFraction: dec("0.5"),
			Sponsorship:      governance.Sponsorship{Fraction: dec("0.25"), MinWallets: 1, PerWalletMinFraction: dec("0.05")},
			TimelockHours:    48,
		},
		Major: governance.ClassParameters{
			QuorumFraction:   dec("0.6"),
			ApprovalFraction: dec("0.66"),
			Sponsorship:      governance.Sponsorship{Fraction: dec("0.3"), MinWallets: 2, PerWalletMinFraction: dec("0.05")},
			TimelockHours:    96,
		},
		Emergency: governance.ClassParameters{
			QuorumFraction:   dec("0.3"),
			ApprovalFraction: dec("0.5"),
			Sponsorship:      governance.Sponsorship{Fraction: dec("0.2"), MinWallets: 2},
			TimelockHours:    6,
		},
		VotingPeriodDays:          7,
		TreasuryMajorThresholdUSD: dec("1000000"),
		ProposalDepositUSDC:       dec("100"),
	}
}

func paramsV2() governance.ParameterSet {
	set := paramsV1()
	set.Version = "v2"
	set.Standard.TimelockHours = 24
	set.Standard.QuorumFraction = dec("0.6")
	return set
}

var (
	treasurer = Actor{ID: "treasurer-1", Role: rbac.RoleTreasurer}
	pm        = Actor{ID: "pm-1", Role: rbac.RoleProjectManager}
	multisig  = Actor{ID: "multisig-1", Role: rbac.RoleDAOMultisig}
	auditor   = Actor{ID: "auditor-1", Role: rbac.RoleAuditor}
	vendor    = Actor{ID: "vendor-1", Role: rbac.RoleVendor}
	admin     = Actor{ID: "admin-1", SystemRole: rbac.SystemRolePlatformAdmin}
)

const (
	projectEven = "river-restore"
	// treasurer-1 alone carries quorum under every class row.
	projectTreasurerLed = "river-works"
	// treasurer-1 alone clears a 0.5 quorum but not a 0.6 one.
	projectTreasurerSlim = "river-survey"
)

var testElectorates = governance.StaticElectorates{
	projectEven:          {"treasurer-1": 40, "pm-1": 30, "multisig-1": 30},
	projectTreasurerLed:  {"treasurer-1": 60, "pm-1": 20, "multisig-1": 20},
	projectTreasurerSlim: {"treasurer-1": 55, "pm-1": 25, "multisig-1": 20},
}

type serviceHarness struct {
	svc       *ProposalService
	store     ProposalStore
	publisher *events.MemoryPublisher
	clock     *testClock
}

func testRegistry(t *testing.T) *rbac.Registry {
	t.Helper()
	reg, err := rbac.NewRegistry(rbac.ApprovalLimits{
		rbac.RoleProjectManager: dec("25000"),
		rbac.RoleTreasurer:      dec("500000"),
	})
	require.NoError(t, err)
	return reg
}

func newServiceHarness(t *testing.T, store ProposalStore) *serviceHarness {
	t.Helper()
	clock := &testClock{now: testStart}
	pub := &events.MemoryPublisher{}
	svc := NewProposalService(testRegistry(t), governance.NewVersionRegistry(), testElectorates, store, pub, financeref.NewGenerator(clock, 7), clock.Now)
	require.NoError(t, svc.LoadVersions(context.Background(), []governance.ParameterSet{paramsV1()}, "policy-file"))
	return &serviceHarness{svc: svc, store: store, publisher: pub, clock: clock}
}

func (h *serviceHarness) create(t *testing.T, amount, project string) *governance.Proposal {
	t.Helper()
	p, err := h.svc.Create(context.Background(), treasurer, CreateProposalInput{
		ProjectID: project,
		Kind:      "payment_release",
		Amount:    usd(amount),
		InvoiceID: "INV-RIVER-0042",
		WBS:       "1.2.3",
	})
	require.NoError(t, err)
	return p
}

// setupTestDB connects to the Postgres instance in DATABASE_URL, applies the schema
// and clears governance tables. The test is skipped when no database is configured.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	t.Cleanup(db.Close)

	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if _, err := db.Exec(context.Background(),
		"TRUNCATE TABLE proposal_votes, proposals, audit_log, governance_versions, idempotency_keys CASCADE"); err != nil {
		t.Fatalf("Failed to truncate: %v", err)
	}
	return db
}
