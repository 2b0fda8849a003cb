package handler

import (
	"net/http"

	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/service"
	"github.com/go-chi/chi/v5"
)

// GovernanceHandler lists and publishes governance parameter versions and answers
// role and reference lookups.
type GovernanceHandler struct {
	svc *service.ProposalService
}

func NewGovernanceHandler(svc *service.ProposalService) *GovernanceHandler {
	return &GovernanceHandler{svc: svc}
}

type versionsResponse struct {
	Current  string                    `json:"current"`
	Versions []governance.ParameterSet `json:"versions"`
}

func (h *GovernanceHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, current := h.svc.ListVersions()
	RespondJSON(w, http.StatusOK, versionsResponse{Current: current, Versions: versions})
}

func (h *GovernanceHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	set, err := h.svc.Version(chi.URLParam(r, "version"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, set)
}

// PublishVersion requires the canConfigureGovernance system capability.
func (h *GovernanceHandler) PublishVersion(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	var set governance.ParameterSet
	if !decodeJSON(w, r, &set) {
		return
	}
	published, err := h.svc.PublishVersion(r.Context(), actor, set)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, published)
}

type permissionsResponse struct {
	Role         string `json:"role"`
	Permissions  any    `json:"permissions"`
	Capabilities any    `json:"capabilities"`
}

func (h *GovernanceHandler) RolePermissions(w http.ResponseWriter, r *http.Request) {
	role, perms, err := h.svc.Permissions(chi.URLParam(r, "role"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, permissionsResponse{
		Role:         role.String(),
		Permissions:  perms,
		Capabilities: perms.Granted(),
	})
}

type refResponse struct {
	Ref   string `json:"ref"`
	Kind  string `json:"kind"`
	Parts any    `json:"parts"`
}

func (h *GovernanceHandler) DescribeRef(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	kind, parts, err := h.svc.DescribeRef(ref)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, refResponse{Ref: ref, Kind: kind, Parts: parts})
}
