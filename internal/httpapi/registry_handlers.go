package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"catalyst.org/internal/registry"
)

type registryEntryRequest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Claims      []string  `json:"claims"`
	Expiry      time.Time `json:"expiry"`
}

type registryCreateSystemRequest struct {
	CallingService string               `json:"callingService"`
	Entry          registryEntryRequest `json:"entry"`
}

func (req registryEntryRequest) toEntry() *registry.Entry {
	return &registry.Entry{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Claims:      req.Claims,
		Expiry:      req.Expiry,
	}
}

// callerCredential extracts the bearer token. The registry service treats a
// missing credential like any other authentication failure.
func callerCredential(r *http.Request) string {
	tok, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return ""
	}
	return tok
}

func (a *API) registryCreate(w http.ResponseWriter, r *http.Request) {
	var req registryEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := a.registry.Create(r.Context(), callerCredential(r), req.toEntry())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) registryCreateSystem(w http.ResponseWriter, r *http.Request) {
	var req registryCreateSystemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := a.registry.CreateSystem(r.Context(), req.CallingService, req.Entry.toEntry())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) registryGet(w http.ResponseWriter, r *http.Request) {
	entry, err := a.registry.Get(r.Context(), callerCredential(r), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) registryList(w http.ResponseWriter, r *http.Request) {
	entries, err := a.registry.List(r.Context(), callerCredential(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (a *API) registryUpdate(w http.ResponseWriter, r *http.Request) {
	var req registryEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry := req.toEntry()
	entry.ID = chi.URLParam(r, "id")
	updated, err := a.registry.Update(r.Context(), callerCredential(r), entry)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) registryDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Delete(r.Context(), callerCredential(r), chi.URLParam(r, "id")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) registryRevoke(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.AddToRevocationList(r.Context(), callerCredential(r), chi.URLParam(r, "id")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) registryUnrevoke(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.RemoveFromRevocationList(r.Context(), callerCredential(r), chi.URLParam(r, "id")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
