package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"catalyst.org/internal/invites"
)

type sendInviteRequest struct {
	Receiver string `json:"receiver"`
	Message  string `json:"message,omitempty"`
}

type respondInviteRequest struct {
	Status string `json:"status"`
}

// callerOrganization resolves the caller's organization from the bearer
// credential. Invites always act on behalf of the caller's own organization.
func (a *API) callerOrganization(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return "", false
	}
	org, err := a.identity.OrganizationForToken(r.Context(), tok)
	if err != nil {
		handleDomainError(w, r, err)
		return "", false
	}
	return org, true
}

func (a *API) sendInvite(w http.ResponseWriter, r *http.Request) {
	org, ok := a.callerOrganization(w, r)
	if !ok {
		return
	}
	var req sendInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := a.invites.Send(r.Context(), org, req.Receiver, req.Message)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) respondInvite(w http.ResponseWriter, r *http.Request) {
	org, ok := a.callerOrganization(w, r)
	if !ok {
		return
	}
	var req respondInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := a.invites.Respond(r.Context(), org, chi.URLParam(r, "id"), invites.Status(req.Status))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) listInvites(w http.ResponseWriter, r *http.Request) {
	org, ok := a.callerOrganization(w, r)
	if !ok {
		return
	}
	items, err := a.invites.ListForOrganization(r.Context(), org)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
