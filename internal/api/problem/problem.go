package problem

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayo6706/treasury-governance/internal/domain"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.treasury-governance.dev/"

// Details represents RFC 7807 Problem Details.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	instance := ""
	requestID := ""
	if r != nil {
		instance = r.URL.Path
		requestID = r.Header.Get("X-Trace-ID")
	}
	if requestID == "" {
		requestID = w.Header().Get("X-Trace-ID")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Details{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		RequestID: requestID,
	})
}

type mapping struct {
	err    error
	status int
	slug   string
	title  string
}

var domainMappings = []mapping{
	{domain.ErrDuplicateApproval, http.StatusConflict, "governance/duplicate-approval", "Duplicate approval"},
	{domain.ErrProposalAlreadyTerminal, http.StatusConflict, "governance/proposal-terminal", "Proposal already closed"},
	{domain.ErrProposalExists, http.StatusConflict, "governance/proposal-exists", "Proposal already exists"},
	{domain.ErrVersionConflict, http.StatusConflict, "governance/version-conflict", "Governance version conflict"},
	{domain.ErrTimelockNotElapsed, http.StatusConflict, "governance/timelock-not-elapsed", "Timelock not elapsed"},
	{domain.ErrThresholdNotMet, http.StatusConflict, "governance/threshold-not-met", "Thresholds not met"},
	{domain.ErrProposalExpired, http.StatusGone, "governance/proposal-expired", "Voting period ended"},
	{domain.ErrInsufficientPermission, http.StatusForbidden, "auth/insufficient-permissions", "Insufficient permission"},
	{domain.ErrAmountExceedsRoleLimit, http.StatusForbidden, "governance/amount-exceeds-role-limit", "Amount exceeds role limit"},
	{domain.ErrNotEligibleVoter, http.StatusForbidden, "governance/not-eligible-voter", "Not an eligible voter"},
	{domain.ErrProposalNotFound, http.StatusNotFound, "governance/proposal-not-found", "Proposal not found"},
	{domain.ErrVersionNotFound, http.StatusNotFound, "governance/version-not-found", "Governance version not found"},
	{domain.ErrUnknownRole, http.StatusNotFound, "rbac/unknown-role", "Unknown role"},
	{domain.ErrMalformedReference, http.StatusBadRequest, "refs/malformed", "Malformed reference"},
	{domain.ErrCurrencyMismatch, http.StatusUnprocessableEntity, "money/currency-mismatch", "Currency mismatch"},
	{domain.ErrAmountOverflow, http.StatusUnprocessableEntity, "money/amount-overflow", "Amount out of range"},
	{domain.ErrInvalidProposal, http.StatusUnprocessableEntity, "governance/invalid-proposal", "Invalid proposal"},
	{domain.ErrInvalidDecision, http.StatusUnprocessableEntity, "governance/invalid-decision", "Invalid decision"},
	{domain.ErrInvalidParameters, http.StatusUnprocessableEntity, "governance/invalid-parameters", "Invalid governance parameters"},
}

// FromError classifies err. ok is false for errors that are not a known domain
// condition; callers treat those as internal failures.
func FromError(err error) (status int, problemType, title string, ok bool) {
	for _, m := range domainMappings {
		if errors.Is(err, m.err) {
			return m.status, Type(m.slug), m.title, true
		}
	}
	return http.StatusInternalServerError, Type("internal-server-error"), http.StatusText(http.StatusInternalServerError), false
}
