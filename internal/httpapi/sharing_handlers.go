package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type shareChannelRequest struct {
	PartnerOrgID string `json:"partnerOrgId"`
}

func (a *API) shareChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	var req shareChannelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tok, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if err := a.sharing.ShareChannelWithPartner(r.Context(), tok, channelID, req.PartnerOrgID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) revokeShare(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	partnerOrgID := chi.URLParam(r, "partnerOrgID")
	tok, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if err := a.sharing.RevokeChannelShare(r.Context(), tok, channelID, partnerOrgID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listChannelShares(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	tok, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	partners, err := a.sharing.ListChannelShares(r.Context(), tok, channelID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
}

func (a *API) listSharedChannels(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	// A missing credential is an explicit error for this listing; the
	// service distinguishes it from an empty result.
	tok, _ := extractBearerToken(r.Header.Get(authHeader))
	channels, err := a.sharing.ListSharedChannels(r.Context(), tok, orgID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": channels})
}

func (a *API) channelAccess(w http.ResponseWriter, r *http.Request) {
	// Eligibility lookups reveal who can read what; anonymous callers may not
	// enumerate them.
	if _, ok := a.requireSubject(w, r); !ok {
		return
	}
	channelID := chi.URLParam(r, "channelID")
	userID := chi.URLParam(r, "userID")
	readable, err := a.sharing.CanReadFromDataChannel(r.Context(), channelID, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channelId": channelID,
		"userId":    userID,
		"canRead":   readable,
	})
}
