package domain

import "errors"

// Policy errors. All of them are recoverable; the API layer maps each one to a
// structured rejection.
var (
	ErrCurrencyMismatch        = errors.New("currency mismatch")
	ErrAmountOverflow          = errors.New("amount overflows minor-unit range")
	ErrUnknownRole             = errors.New("unknown role")
	ErrInsufficientPermission  = errors.New("insufficient permission")
	ErrAmountExceedsRoleLimit  = errors.New("amount exceeds role approval limit")
	ErrDuplicateApproval       = errors.New("actor already voted on proposal")
	ErrNotEligibleVoter        = errors.New("actor is not an eligible voter")
	ErrTimelockNotElapsed      = errors.New("timelock not elapsed")
	ErrThresholdNotMet         = errors.New("governance thresholds not met")
	ErrMalformedReference      = errors.New("malformed reference")
	ErrProposalNotFound        = errors.New("proposal not found")
	ErrProposalExists          = errors.New("proposal already exists")
	ErrInvalidProposal         = errors.New("invalid proposal")
	ErrInvalidDecision         = errors.New("invalid decision")
	ErrProposalExpired         = errors.New("proposal voting period expired")
	ErrProposalAlreadyTerminal = errors.New("proposal already terminal")
	ErrInvalidParameters       = errors.New("invalid governance parameters")
	ErrVersionConflict         = errors.New("governance version already published with different values")
	ErrVersionNotFound         = errors.New("governance version not found")
)

// IsBenign reports whether err is an idempotent outcome that callers should not alarm on.
func IsBenign(err error) bool {
	return errors.Is(err, ErrDuplicateApproval) || errors.Is(err, ErrProposalAlreadyTerminal)
}
