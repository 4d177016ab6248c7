// Package httpapi exposes the trust core over HTTP: signing and validation,
// the issued-token registry, channel sharing, and organization invites.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gocache "github.com/patrickmn/go-cache"

	"catalyst.org/internal/identity"
	"catalyst.org/internal/invites"
	"catalyst.org/internal/keys"
	"catalyst.org/internal/obs"
	"catalyst.org/internal/registry"
	"catalyst.org/internal/sharing"
	"catalyst.org/internal/token"
)

// ReadyProbe checks the process' durable dependencies.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries the wired services. Namespace is the default tenant used when
// a route does not carry one.
type Deps struct {
	Signer    *token.Signer
	Validator *token.Validator
	Keys      *keys.Provider
	Registry  *registry.Service
	Sharing   *sharing.Service
	Invites   *invites.Service
	Identity  *identity.Resolver
	Namespace string
	Version   string
	Ready     ReadyProbe
}

// API is the HTTP layer.
type API struct {
	router chi.Router

	signer    *token.Signer
	validator *token.Validator
	keys      *keys.Provider
	registry  *registry.Service
	sharing   *sharing.Service
	invites   *invites.Service
	identity  *identity.Resolver
	namespace string
	version   string
	ready     ReadyProbe

	// JWKS responses change only on rotation; cache them briefly.
	jwksCache *gocache.Cache
}

func New(d Deps) *API {
	a := &API{
		router:    chi.NewRouter(),
		signer:    d.Signer,
		validator: d.Validator,
		keys:      d.Keys,
		registry:  d.Registry,
		sharing:   d.Sharing,
		invites:   d.Invites,
		identity:  d.Identity,
		namespace: d.Namespace,
		version:   d.Version,
		ready:     d.Ready,
		jwksCache: gocache.New(time.Minute, 5*time.Minute),
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(SecurityHeaders)

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Get("/v1/info", a.info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1/namespaces/{namespace}", func(r chi.Router) {
		r.Post("/tokens/user", a.signUserToken)
		r.Post("/tokens/system", a.signSystemToken)
		r.Post("/tokens/validate", a.validateToken)
		r.Get("/jwks.json", a.jwks)
		r.Post("/keys/rotate", a.rotateKey)
	})

	r.Route("/v1/registry", func(r chi.Router) {
		r.Post("/", a.registryCreate)
		r.Post("/system", a.registryCreateSystem)
		r.Get("/", a.registryList)
		r.Get("/{id}", a.registryGet)
		r.Put("/{id}", a.registryUpdate)
		r.Delete("/{id}", a.registryDelete)
		r.Post("/{id}/revoke", a.registryRevoke)
		r.Delete("/{id}/revoke", a.registryUnrevoke)
	})

	r.Route("/v1/channels/{channelID}", func(r chi.Router) {
		r.Post("/shares", a.shareChannel)
		r.Delete("/shares/{partnerOrgID}", a.revokeShare)
		r.Get("/shares", a.listChannelShares)
		r.Get("/access/{userID}", a.channelAccess)
	})
	r.Get("/v1/organizations/{orgID}/shared-channels", a.listSharedChannels)

	r.Route("/v1/invites", func(r chi.Router) {
		r.Post("/", a.sendInvite)
		r.Post("/{id}/respond", a.respondInvite)
		r.Get("/", a.listInvites)
	})
}

// Handler returns the instrumented root handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	return obs.Instrument(h)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "catalyst-api",
		"version": a.version,
	})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "catalyst-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	tok := strings.TrimSpace(header[len(bearerPrefix):])
	if tok == "" {
		return "", errors.New("missing bearer token")
	}
	return tok, nil
}

// requireSubject rejects the request unless it carries a valid bearer
// credential, returning the resolved subject for handlers that need it.
func (a *API) requireSubject(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return "", false
	}
	subject, err := a.identity.Subject(r.Context(), tok)
	if err != nil {
		handleDomainError(w, r, err)
		return "", false
	}
	return subject, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
