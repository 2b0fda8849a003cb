package governance

import (
	"fmt"
	"strings"

	"github.com/ayo6706/treasury-governance/internal/domain"
)

// ProposalClass selects the parameter row a proposal is judged against.
type ProposalClass int

const (
	ClassStandard ProposalClass = iota + 1
	ClassMajor
	ClassEmergency
)

func Classes() []ProposalClass {
	return []ProposalClass{ClassStandard, ClassMajor, ClassEmergency}
}

func (c ProposalClass) String() string {
	switch c {
	case ClassStandard:
		return "STANDARD"
	case ClassMajor:
		return "MAJOR"
	case ClassEmergency:
		return "EMERGENCY"
	default:
		return fmt.Sprintf("ProposalClass(%d)", int(c))
	}
}

func (c ProposalClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ProposalClass) UnmarshalText(b []byte) error {
	parsed, err := ParseClass(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func ParseClass(s string) (ProposalClass, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STANDARD":
		return ClassStandard, nil
	case "MAJOR":
		return ClassMajor, nil
	case "EMERGENCY":
		return ClassEmergency, nil
	default:
		return 0, fmt.Errorf("unknown proposal class %q", s)
	}
}

// Classify picks the class of a proposal. The emergency flag wins regardless of
// amount; otherwise amounts at or above the major threshold are MAJOR. A MAJOR hint
// may escalate a smaller amount but a STANDARD hint never downgrades. USDC amounts
// are measured against the USD threshold at par.
func Classify(amount domain.Money, emergency bool, hint ProposalClass, params ParameterSet) (ProposalClass, error) {
	if emergency || hint == ClassEmergency {
		return ClassEmergency, nil
	}
	threshold, err := domain.FromDecimal(params.TreasuryMajorThresholdUSD, amount.Currency)
	if err != nil {
		return 0, fmt.Errorf("major threshold: %w", err)
	}
	cmp, err := amount.Compare(threshold)
	if err != nil {
		return 0, err
	}
	if cmp >= 0 || hint == ClassMajor {
		return ClassMajor, nil
	}
	return ClassStandard, nil
}
