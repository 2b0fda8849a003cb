package problem

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		slug   string
		known  bool
	}{
		{fmt.Errorf("vote: %w", domain.ErrDuplicateApproval), http.StatusConflict, "governance/duplicate-approval", true},
		{domain.ErrProposalAlreadyTerminal, http.StatusConflict, "governance/proposal-terminal", true},
		{domain.ErrTimelockNotElapsed, http.StatusConflict, "governance/timelock-not-elapsed", true},
		{domain.ErrAmountExceedsRoleLimit, http.StatusForbidden, "governance/amount-exceeds-role-limit", true},
		{domain.ErrProposalExpired, http.StatusGone, "governance/proposal-expired", true},
		{domain.ErrMalformedReference, http.StatusBadRequest, "refs/malformed", true},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal-server-error", false},
	}
	for _, tc := range tests {
		t.Run(tc.slug, func(t *testing.T) {
			status, typ, _, ok := FromError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, Type(tc.slug), typ)
			assert.Equal(t, tc.known, ok)
		})
	}
}

func TestWrite(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/proposals/DSB-1", nil)
	r.Header.Set("X-Trace-ID", "trace-1")
	w := httptest.NewRecorder()

	Write(w, r, http.StatusNotFound, Type("governance/proposal-not-found"), "", "DSB-1")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, contentType, w.Header().Get("Content-Type"))
	var d Details
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "Not Found", d.Title)
	assert.Equal(t, "/v1/proposals/DSB-1", d.Instance)
	assert.Equal(t, "trace-1", d.RequestID)
}
