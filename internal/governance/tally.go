package governance

import (
	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/shopspring/decimal"
)

// Tally is the weighted vote count of a proposal measured against its class row.
type Tally struct {
	TotalWeight    int64 `json:"total_weight"`
	CastWeight     int64 `json:"cast_weight"`
	ApproveWeight  int64 `json:"approve_weight"`
	RejectWeight   int64 `json:"reject_weight"`
	Sponsors       int   `json:"sponsors"`
	SponsorWeight  int64 `json:"sponsor_weight"`
	QuorumMet      bool  `json:"quorum_met"`
	ApprovalMet    bool  `json:"approval_met"`
	SponsorshipMet bool  `json:"sponsorship_met"`
}

// Passed reports whether every threshold holds.
func (t Tally) Passed() bool {
	return t.QuorumMet && t.ApprovalMet && t.SponsorshipMet
}

// ComputeTally evaluates votes against params with exact decimal arithmetic.
//
// Quorum is participating (cast) weight over total electorate weight. Approval is
// affirmative weight over cast weight. Sponsorship counts approving wallets whose
// individual weight reaches the per-wallet minimum; EMERGENCY proposals have no
// per-wallet minimum and count every approving wallet.
func ComputeTally(electorate map[string]int64, votes []Vote, class ProposalClass, params ClassParameters) Tally {
	var t Tally
	for _, w := range electorate {
		t.TotalWeight += w
	}

	total := decimal.NewFromInt(t.TotalWeight)
	perWalletMin := params.Sponsorship.PerWalletMinFraction.Mul(total)
	if class == ClassEmergency {
		perWalletMin = decimal.Zero
	}

	for _, v := range votes {
		t.CastWeight += v.Weight
		switch v.Decision {
		case domain.DecisionApprove:
			t.ApproveWeight += v.Weight
			if decimal.NewFromInt(v.Weight).GreaterThanOrEqual(perWalletMin) {
				t.Sponsors++
				t.SponsorWeight += v.Weight
			}
		case domain.DecisionReject:
			t.RejectWeight += v.Weight
		}
	}

	if t.TotalWeight <= 0 {
		return t
	}
	t.QuorumMet = atLeast(t.CastWeight, params.QuorumFraction, t.TotalWeight)
	t.ApprovalMet = t.CastWeight > 0 && atLeast(t.ApproveWeight, params.ApprovalFraction, t.CastWeight)
	t.SponsorshipMet = t.Sponsors >= params.Sponsorship.MinWallets &&
		atLeast(t.SponsorWeight, params.Sponsorship.Fraction, t.TotalWeight)
	return t
}

// atLeast reports part >= fraction*whole without division.
func atLeast(part int64, fraction decimal.Decimal, whole int64) bool {
	return decimal.NewFromInt(part).GreaterThanOrEqual(fraction.Mul(decimal.NewFromInt(whole)))
}
