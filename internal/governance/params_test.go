package governance

import (
	"testing"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	params := testParams()
	cases := []struct {
		name      string
		amount    domain.Money
		emergency bool
		hint      ProposalClass
		want      ProposalClass
	}{
		{"below threshold", domain.MustFromString("999999.99", domain.USD), false, 0, ClassStandard},
		{"at threshold", domain.MustFromString("1000000.00", domain.USD), false, 0, ClassMajor},
		{"scenario amount", domain.MustFromString("1200000", domain.USD), false, 0, ClassMajor},
		{"usdc at par", domain.MustFromString("1000000", domain.USDC), false, 0, ClassMajor},
		{"usdc below", domain.MustFromString("999999.999999", domain.USDC), false, 0, ClassStandard},
		{"emergency flag wins", domain.MustFromString("5000000", domain.USD), true, 0, ClassEmergency},
		{"emergency hint", domain.MustFromString("10", domain.USD), false, ClassEmergency, ClassEmergency},
		{"major hint escalates", domain.MustFromString("10", domain.USD), false, ClassMajor, ClassMajor},
		{"standard hint never downgrades", domain.MustFromString("2000000", domain.USD), false, ClassStandard, ClassMajor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.amount, tc.emergency, tc.hint, params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass(" major ")
	require.NoError(t, err)
	assert.Equal(t, ClassMajor, c)

	var u ProposalClass
	require.NoError(t, u.UnmarshalText([]byte("EMERGENCY")))
	assert.Equal(t, ClassEmergency, u)

	_, err = ParseClass("critical")
	require.Error(t, err)
}

func TestComputeTally(t *testing.T) {
	params := testParams()
	electorate := map[string]int64{"small": 2, "b": 49, "c": 49}
	votes := []Vote{
		{ActorID: "small", Decision: domain.DecisionApprove, Weight: 2},
		{ActorID: "b", Decision: domain.DecisionApprove, Weight: 49},
	}

	standard := ComputeTally(electorate, votes, ClassStandard, params.Standard)
	assert.Equal(t, int64(100), standard.TotalWeight)
	assert.Equal(t, int64(51), standard.CastWeight)
	assert.Equal(t, 1, standard.Sponsors, "wallet below per-wallet minimum does not sponsor")
	assert.Equal(t, int64(49), standard.SponsorWeight)
	assert.True(t, standard.Passed())

	major := ComputeTally(electorate, votes, ClassMajor, params.Major)
	assert.False(t, major.QuorumMet)
	assert.False(t, major.SponsorshipMet, "MAJOR needs two qualifying wallets")

	emergency := ComputeTally(electorate, votes, ClassEmergency, params.Emergency)
	assert.Equal(t, 2, emergency.Sponsors)
	assert.Equal(t, int64(51), emergency.SponsorWeight)
	assert.True(t, emergency.Passed())

	none := ComputeTally(electorate, nil, ClassStandard, params.Standard)
	assert.False(t, none.ApprovalMet)
	assert.False(t, none.Passed())
}

func TestComputeTallyIsExact(t *testing.T) {
	row := ClassParameters{
		QuorumFraction:   dec("0.333333"),
		ApprovalFraction: dec("0.5"),
		Sponsorship:      Sponsorship{Fraction: dec("0"), MinWallets: 0},
	}
	electorate := map[string]int64{"a": 333333, "b": 666667}

	below := ComputeTally(electorate, []Vote{{ActorID: "a", Decision: domain.DecisionApprove, Weight: 333332}}, ClassStandard, row)
	assert.False(t, below.QuorumMet)

	exact := ComputeTally(electorate, []Vote{{ActorID: "a", Decision: domain.DecisionApprove, Weight: 333333}}, ClassStandard, row)
	assert.True(t, exact.QuorumMet)
	assert.True(t, exact.Passed())
}

func TestParameterSetValidate(t *testing.T) {
	require.NoError(t, testParams().Validate())

	cases := map[string]func(p *ParameterSet){
		"missing version":        func(p *ParameterSet) { p.Version = "" },
		"fraction above one":     func(p *ParameterSet) { p.Major.ApprovalFraction = dec("1.01") },
		"negative fraction":      func(p *ParameterSet) { p.Standard.Sponsorship.Fraction = dec("-0.1") },
		"zero approval":          func(p *ParameterSet) { p.Standard.ApprovalFraction = dec("0") },
		"negative timelock":      func(p *ParameterSet) { p.Emergency.TimelockHours = -1 },
		"zero voting period":     func(p *ParameterSet) { p.VotingPeriodDays = 0 },
		"zero major threshold":   func(p *ParameterSet) { p.TreasuryMajorThresholdUSD = dec("0") },
		"emergency sponsorless":  func(p *ParameterSet) { p.Emergency.Sponsorship.MinWallets = 0 },
		"emergency per-wallet":   func(p *ParameterSet) { p.Emergency.Sponsorship.PerWalletMinFraction = dec("0.1") },
		"negative deposit":       func(p *ParameterSet) { p.ProposalDepositUSDC = dec("-1") },
		"negative sponsor count": func(p *ParameterSet) { p.Major.Sponsorship.MinWallets = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := testParams()
			mutate(&p)
			require.ErrorIs(t, p.Validate(), domain.ErrInvalidParameters)
		})
	}
}

func TestVersionRegistry(t *testing.T) {
	reg := NewVersionRegistry()
	_, err := reg.Current()
	require.ErrorIs(t, err, domain.ErrVersionNotFound)

	v1 := testParams()
	require.NoError(t, reg.Publish(v1))
	require.NoError(t, reg.Publish(v1), "identical republish is a no-op")

	changed := testParams()
	changed.Standard.QuorumFraction = dec("0.4")
	require.ErrorIs(t, reg.Publish(changed), domain.ErrVersionConflict)

	got, err := reg.Get("v1")
	require.NoError(t, err)
	assert.True(t, got.Standard.QuorumFraction.Equal(dec("0.5")), "published values are immutable")

	v2 := changed
	v2.Version = "v2"
	require.NoError(t, reg.Publish(v2))
	cur, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, "v2", cur.Version)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "v1", list[0].Version)
	assert.Equal(t, []string{"v1", "v2"}, reg.Versions())

	_, err = reg.Get("v9")
	require.ErrorIs(t, err, domain.ErrVersionNotFound)

	bad := testParams()
	bad.Version = "v3"
	bad.VotingPeriodDays = 0
	require.ErrorIs(t, reg.Publish(bad), domain.ErrInvalidParameters)
}

func TestProposalClone(t *testing.T) {
	met := testStart
	p := &Proposal{
		ID:             "DSB-1",
		Electorate:     map[string]int64{"a": 1},
		Votes:          []Vote{{ActorID: "a"}},
		ThresholdMetAt: &met,
	}
	c := p.Clone()
	c.Electorate["b"] = 2
	c.Votes[0].ActorID = "z"
	*c.ThresholdMetAt = met.Add(1)

	assert.Len(t, p.Electorate, 1)
	assert.Equal(t, "a", p.Votes[0].ActorID)
	assert.Equal(t, testStart, *p.ThresholdMetAt)
}
