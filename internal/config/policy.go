package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Policy is the governance document loaded at startup: the approval ceilings of the
// limit-bound finance roles, each project's voting weights and the parameter
// versions to publish, oldest first.
type Policy struct {
	ApprovalLimitsUSD map[string]decimal.Decimal   `yaml:"approval_limits_usd"`
	Electorates       governance.StaticElectorates `yaml:"project_electorates"`
	Versions          []governance.ParameterSet    `yaml:"governance_versions"`
}

// LoadPolicy reads and strictly decodes the policy file at path.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes a policy document. Unknown keys, a second document and
// invalid parameter sets are errors.
func ParsePolicy(raw []byte) (*Policy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var p Policy
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("policy file is empty")
		}
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("policy file must contain a single document")
	}

	if len(p.Versions) == 0 {
		return nil, fmt.Errorf("policy declares no governance_versions")
	}
	seen := make(map[string]struct{}, len(p.Versions))
	for _, set := range p.Versions {
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("governance version %q: %w", set.Version, err)
		}
		if _, dup := seen[set.Version]; dup {
			return nil, fmt.Errorf("governance version %q declared twice", set.Version)
		}
		seen[set.Version] = struct{}{}
	}
	if len(p.Electorates) == 0 {
		return nil, fmt.Errorf("policy declares no project_electorates")
	}
	if err := p.Electorates.Validate(); err != nil {
		return nil, fmt.Errorf("project_electorates: %w", err)
	}
	if _, err := p.Limits(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Limits converts the role-name keyed ceilings into registry limits.
func (p *Policy) Limits() (rbac.ApprovalLimits, error) {
	limits := make(rbac.ApprovalLimits, len(p.ApprovalLimitsUSD))
	for name, amount := range p.ApprovalLimitsUSD {
		role, err := rbac.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("approval_limits_usd: %w", err)
		}
		limits[role] = amount
	}
	return limits, nil
}
