package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"catalyst.org/internal/token"
)

type signUserTokenRequest struct {
	Entity       string   `json:"entity"`
	Organization string   `json:"organization"`
	Claims       []string `json:"claims"`
	Audience     string   `json:"audience"`
	ExpiresIn    int64    `json:"expiresIn,omitempty"` // seconds; 0 means the default
}

type signSystemTokenRequest struct {
	CallingService string   `json:"callingService"`
	ChannelID      string   `json:"channelId,omitempty"`
	ChannelIDs     []string `json:"channelIds,omitempty"`
	Purpose        string   `json:"purpose,omitempty"`
	Duration       *int64   `json:"duration,omitempty"`
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

func (a *API) signUserToken(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	var req signUserTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	signed, err := a.signer.SignUserToken(r.Context(), namespace, token.UserTokenRequest{
		Entity:       req.Entity,
		Organization: req.Organization,
		Claims:       req.Claims,
		Audience:     req.Audience,
		ExpiresIn:    time.Duration(req.ExpiresIn) * time.Second,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signed)
}

func (a *API) signSystemToken(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	var req signSystemTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	signed, err := a.signer.SignSystemJWT(r.Context(), namespace, token.SystemTokenRequest{
		CallingService: req.CallingService,
		ChannelID:      req.ChannelID,
		ChannelIDs:     req.ChannelIDs,
		Purpose:        req.Purpose,
		Duration:       req.Duration,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signed)
}

func (a *API) validateToken(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	var req validateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	result, err := a.validator.Validate(r.Context(), req.Token, namespace)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) jwks(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	if cached, ok := a.jwksCache.Get(namespace); ok {
		writeJWKS(w, cached.([]byte))
		return
	}
	doc, err := a.keys.JWKS(r.Context(), namespace)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.jwksCache.SetDefault(namespace, doc)
	writeJWKS(w, doc)
}

func writeJWKS(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (a *API) rotateKey(w http.ResponseWriter, r *http.Request) {
	// Rotation mutates the key set; it is gated like every other mutating
	// surface.
	if _, ok := a.requireSubject(w, r); !ok {
		return
	}
	namespace := chi.URLParam(r, "namespace")
	v, err := a.keys.Rotate(r.Context(), namespace)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	// The cached JWKS no longer reflects the key set.
	a.jwksCache.Delete(namespace)
	writeJSON(w, http.StatusCreated, map[string]any{
		"namespace": v.Namespace,
		"version":   v.Version,
		"kid":       v.KID,
		"issuer":    v.Issuer(),
	})
}
