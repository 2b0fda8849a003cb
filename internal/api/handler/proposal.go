package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/service"
	"github.com/go-chi/chi/v5"
)

// ProposalHandler serves the proposal lifecycle: open, vote, execute, override, read.
type ProposalHandler struct {
	svc *service.ProposalService
}

func NewProposalHandler(svc *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{svc: svc}
}

type createProposalRequest struct {
	ProjectID string        `json:"project_id"`
	Kind      string        `json:"kind"`
	Amount    *domain.Money `json:"amount"`
	Class     string        `json:"class,omitempty"`
	Emergency bool          `json:"emergency"`
	InvoiceID string        `json:"invoice_id,omitempty"`
	WBS       string        `json:"wbs,omitempty"`
}

type voteRequest struct {
	Decision string `json:"decision"`
}

type overrideRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type proposalResponse struct {
	*governance.Proposal
	Tally        governance.Tally `json:"tally"`
	ExecutableAt *time.Time       `json:"executable_at,omitempty"`
}

func newProposalResponse(p *governance.Proposal) proposalResponse {
	resp := proposalResponse{Proposal: p, Tally: p.Tally()}
	if at, ok := p.ExecutableAt(); ok && !p.Terminal() {
		resp.ExecutableAt = &at
	}
	return resp
}

func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	var req createProposalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.Kind) == "" {
		invalid(w, r, "project_id and kind are required")
		return
	}
	if req.Amount == nil {
		invalid(w, r, "amount is required")
		return
	}
	var hint governance.ProposalClass
	if req.Class != "" {
		parsed, err := governance.ParseClass(req.Class)
		if err != nil {
			invalid(w, r, "%v", err)
			return
		}
		hint = parsed
	}

	p, err := h.svc.Create(r.Context(), actor, service.CreateProposalInput{
		ProjectID: req.ProjectID,
		Kind:      req.Kind,
		Amount:    *req.Amount,
		ClassHint: hint,
		Emergency: req.Emergency,
		InvoiceID: req.InvoiceID,
		WBS:       req.WBS,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/proposals/"+p.ID)
	RespondJSON(w, http.StatusCreated, newProposalResponse(p))
}

func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, newProposalResponse(p))
}

// Vote records an APPROVE or REJECT decision. A vote arriving after the voting
// period answers 410 even though the proposal was closed as a result.
func (h *ProposalHandler) Vote(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.Vote(r.Context(), chi.URLParam(r, "id"), actor, req.Decision)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, newProposalResponse(p))
}

func (h *ProposalHandler) Execute(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Execute(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, newProposalResponse(p))
}

func (h *ProposalHandler) Override(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.Override(r.Context(), chi.URLParam(r, "id"), actor, req.Status, req.Reason)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, newProposalResponse(p))
}

func (h *ProposalHandler) Audit(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.Audit(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
