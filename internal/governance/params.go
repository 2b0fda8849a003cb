package governance

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/shopspring/decimal"
)

// Sponsorship is the distinct-wallet co-signing requirement of a proposal class.
type Sponsorship struct {
	Fraction             decimal.Decimal `json:"fraction" yaml:"fraction"`
	MinWallets           int             `json:"min_wallets" yaml:"min_wallets"`
	PerWalletMinFraction decimal.Decimal `json:"per_wallet_min_fraction" yaml:"per_wallet_min_fraction"`
}

// ClassParameters are the thresholds applied to one proposal class.
type ClassParameters struct {
	QuorumFraction   decimal.Decimal `json:"quorum_fraction" yaml:"quorum_fraction"`
	ApprovalFraction decimal.Decimal `json:"approval_fraction" yaml:"approval_fraction"`
	Sponsorship      Sponsorship     `json:"sponsorship" yaml:"sponsorship"`
	TimelockHours    int             `json:"timelock_hours" yaml:"timelock_hours"`
}

// Timelock returns the cool-down as a duration.
func (c ClassParameters) Timelock() time.Duration {
	return time.Duration(c.TimelockHours) * time.Hour
}

// ParameterSet is one published version of the governance rules. Once published a
// version's values never change; a new version is published instead.
type ParameterSet struct {
	Version                   string          `json:"version" yaml:"version"`
	Standard                  ClassParameters `json:"standard" yaml:"standard"`
	Major                     ClassParameters `json:"major" yaml:"major"`
	Emergency                 ClassParameters `json:"emergency" yaml:"emergency"`
	VotingPeriodDays          int             `json:"voting_period_days" yaml:"voting_period_days"`
	TreasuryMajorThresholdUSD decimal.Decimal `json:"treasury_major_threshold_usd" yaml:"treasury_major_threshold_usd"`
	ProposalDepositUSDC       decimal.Decimal `json:"proposal_deposit_usdc" yaml:"proposal_deposit_usdc"`
}

// For returns the parameter row of class.
func (p ParameterSet) For(class ProposalClass) ClassParameters {
	switch class {
	case ClassMajor:
		return p.Major
	case ClassEmergency:
		return p.Emergency
	default:
		return p.Standard
	}
}

// VotingPeriod returns the platform-wide voting window.
func (p ParameterSet) VotingPeriod() time.Duration {
	return time.Duration(p.VotingPeriodDays) * 24 * time.Hour
}

// Deposit returns the proposal deposit in USDC.
func (p ParameterSet) Deposit() (domain.Money, error) {
	return domain.FromDecimal(p.ProposalDepositUSDC, domain.USDC)
}

// Validate rejects parameter sets the evaluator cannot run with.
func (p ParameterSet) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Version) == "" {
		problems = append(problems, "version is required")
	}
	if p.VotingPeriodDays <= 0 {
		problems = append(problems, "voting_period_days must be positive")
	}
	if !p.TreasuryMajorThresholdUSD.IsPositive() {
		problems = append(problems, "treasury_major_threshold_usd must be positive")
	}
	if p.ProposalDepositUSDC.IsNegative() {
		problems = append(problems, "proposal_deposit_usdc must not be negative")
	}
	for _, class := range Classes() {
		c := p.For(class)
		name := strings.ToLower(class.String())
		checkFraction := func(field string, v decimal.Decimal) {
			if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(1)) {
				problems = append(problems, fmt.Sprintf("%s.%s must be within [0,1], got %s", name, field, v))
			}
		}
		checkFraction("quorum_fraction", c.QuorumFraction)
		checkFraction("approval_fraction", c.ApprovalFraction)
		checkFraction("sponsorship.fraction", c.Sponsorship.Fraction)
		checkFraction("sponsorship.per_wallet_min_fraction", c.Sponsorship.PerWalletMinFraction)
		if !c.ApprovalFraction.IsPositive() {
			problems = append(problems, name+".approval_fraction must be positive")
		}
		if c.Sponsorship.MinWallets < 0 {
			problems = append(problems, name+".sponsorship.min_wallets must not be negative")
		}
		if c.TimelockHours < 0 {
			problems = append(problems, name+".timelock_hours must not be negative")
		}
	}
	if p.Emergency.Sponsorship.MinWallets < 1 {
		problems = append(problems, "emergency.sponsorship.min_wallets must be at least 1")
	}
	if !p.Emergency.Sponsorship.PerWalletMinFraction.IsZero() {
		problems = append(problems, "emergency.sponsorship.per_wallet_min_fraction is not applicable")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidParameters, strings.Join(problems, "; "))
	}
	return nil
}

// Equal compares numeric values exactly.
func (p ParameterSet) Equal(o ParameterSet) bool {
	if p.Version != o.Version || p.VotingPeriodDays != o.VotingPeriodDays ||
		!p.TreasuryMajorThresholdUSD.Equal(o.TreasuryMajorThresholdUSD) ||
		!p.ProposalDepositUSDC.Equal(o.ProposalDepositUSDC) {
		return false
	}
	for _, class := range Classes() {
		a, b := p.For(class), o.For(class)
		if !a.QuorumFraction.Equal(b.QuorumFraction) ||
			!a.ApprovalFraction.Equal(b.ApprovalFraction) ||
			!a.Sponsorship.Fraction.Equal(b.Sponsorship.Fraction) ||
			!a.Sponsorship.PerWalletMinFraction.Equal(b.Sponsorship.PerWalletMinFraction) ||
			a.Sponsorship.MinWallets != b.Sponsorship.MinWallets ||
			a.TimelockHours != b.TimelockHours {
			return false
		}
	}
	return true
}

// VersionRegistry retains every published parameter set. Versions are append-only.
type VersionRegistry struct {
	mu       sync.RWMutex
	versions map[string]ParameterSet
	order    []string
	current  string
}

func NewVersionRegistry() *VersionRegistry {
	return &VersionRegistry{versions: make(map[string]ParameterSet)}
}

// Publish adds set and makes it current. Republishing identical values is a no-op;
// republishing a version with different values fails with ErrVersionConflict.
func (r *VersionRegistry) Publish(set ParameterSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.versions[set.Version]; ok {
		if !existing.Equal(set) {
			return fmt.Errorf("version %s: %w", set.Version, domain.ErrVersionConflict)
		}
		r.current = set.Version
		return nil
	}
	r.versions[set.Version] = set
	r.order = append(r.order, set.Version)
	r.current = set.Version
	return nil
}

// Get returns a retained version.
func (r *VersionRegistry) Get(version string) (ParameterSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.versions[version]
	if !ok {
		return ParameterSet{}, fmt.Errorf("%s: %w", version, domain.ErrVersionNotFound)
	}
	return set, nil
}

// Current returns the version new proposals are opened under.
func (r *VersionRegistry) Current() (ParameterSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == "" {
		return ParameterSet{}, domain.ErrVersionNotFound
	}
	return r.versions[r.current], nil
}

// List returns versions in publication order.
func (r *VersionRegistry) List() []ParameterSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ParameterSet, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, r.versions[v])
	}
	return out
}

// Versions returns the retained version strings sorted lexically.
func (r *VersionRegistry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}
