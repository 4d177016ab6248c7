package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"catalyst.org/internal/obs"
)

// Authenticator resolves the caller's organization from a bearer credential.
// Implementations may return any error; the service sanitizes all of them.
type Authenticator interface {
	OrganizationForToken(ctx context.Context, token string) (string, error)
}

// Service is the credential-gated registry surface.
type Service struct {
	store           Store
	authn           Authenticator
	allowedServices map[string]struct{}
	now             func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the registry service. allowedServices is copied; the
// caller's slice cannot mutate the allow-list afterwards.
func NewService(store Store, authn Authenticator, allowedServices []string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("registry: store is required")
	}
	if authn == nil {
		return nil, errors.New("registry: authenticator is required")
	}
	allowed := make(map[string]struct{}, len(allowedServices))
	for _, name := range allowedServices {
		allowed[name] = struct{}{}
	}
	svc := &Service{
		store:           store,
		authn:           authn,
		allowedServices: allowed,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// authenticate resolves the caller's organization. Every failure collapses to
// ErrAuthenticationFailed; the underlying cause is logged server-side only.
func (s *Service) authenticate(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrAuthenticationFailed
	}
	org, err := s.authn.OrganizationForToken(ctx, token)
	if err != nil {
		obs.Warn("registry credential rejected", map[string]any{"cause": err.Error()})
		return "", ErrAuthenticationFailed
	}
	if strings.TrimSpace(org) == "" {
		return "", ErrAuthenticationFailed
	}
	return org, nil
}

// Create records a token entry for the caller's organization.
func (s *Service) Create(ctx context.Context, token string, e *Entry) (*Entry, error) {
	org, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, e.Validate()
	}
	entry := e.clone()
	entry.Organization = org
	if entry.Status == "" {
		entry.Status = StatusActive
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, entry); err != nil {
		return nil, err
	}
	return s.readBack(ctx, org, entry.ID)
}

// CreateSystem records an entry on behalf of an allow-listed service. The
// service name must match exactly: no trimming-as-acceptance, no case
// folding. Duplicate ids are a no-op that preserves the first entry.
func (s *Service) CreateSystem(ctx context.Context, callingService string, e *Entry) (*Entry, error) {
	if callingService == "" {
		return nil, ErrUnauthorizedService
	}
	if _, ok := s.allowedServices[callingService]; !ok {
		return nil, ErrUnauthorizedService
	}
	if e == nil {
		return nil, e.Validate()
	}
	if e.Status == "" {
		entry := e.clone()
		entry.Status = StatusActive
		e = entry
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	err := s.store.Insert(ctx, e)
	if errors.Is(err, ErrDuplicateEntry) {
		// The warning deliberately carries neither the id nor any claim value.
		obs.Warn("duplicate system registry entry ignored", map[string]any{
			"service": callingService,
		})
		return s.store.GetByID(ctx, e.ID)
	}
	if err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, e.ID)
}

// Get returns one entry within the caller's organization, with the expired
// status derived at read time.
func (s *Service) Get(ctx context.Context, token, id string) (*Entry, error) {
	org, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if e.Status == StatusDeleted {
		return nil, ErrNotFound
	}
	e.Status = e.EffectiveStatus(s.now())
	return e, nil
}

// List returns the caller organization's entries, deleted ones excluded.
func (s *Service) List(ctx context.Context, token string) ([]*Entry, error) {
	org, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	all, err := s.store.List(ctx, org)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*Entry, 0, len(all))
	for _, e := range all {
		if e.Status == StatusDeleted {
			continue
		}
		e.Status = e.EffectiveStatus(now)
		out = append(out, e)
	}
	return out, nil
}

// Update mutates an entry's descriptive fields. Status only moves through the
// dedicated transitions; claims and expiry are immutable after issuance.
func (s *Service) Update(ctx context.Context, token string, e *Entry) (*Entry, error) {
	org, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, e.Validate()
	}
	existing, err := s.store.Get(ctx, org, e.ID)
	if err != nil {
		return nil, err
	}
	if existing.Status == StatusDeleted {
		return nil, ErrNotFound
	}
	updated := existing.clone()
	updated.Name = e.Name
	updated.Description = e.Description
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, updated); err != nil {
		return nil, err
	}
	return s.readBack(ctx, org, e.ID)
}

// Delete transitions an entry to deleted. Idempotent: deleting a deleted
// entry succeeds.
func (s *Service) Delete(ctx context.Context, token, id string) error {
	org, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	existing, err := s.store.Get(ctx, org, id)
	if err != nil {
		return err
	}
	if existing.Status == StatusDeleted {
		return nil
	}
	return s.store.SetStatus(ctx, org, id, StatusDeleted)
}

// AddToRevocationList transitions active -> revoked. Idempotent: revoking a
// revoked entry succeeds.
func (s *Service) AddToRevocationList(ctx context.Context, token, id string) error {
	org, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	existing, err := s.store.Get(ctx, org, id)
	if err != nil {
		return err
	}
	switch existing.Status {
	case StatusRevoked:
		return nil
	case StatusDeleted:
		return ErrNotFound
	}
	return s.store.SetStatus(ctx, org, id, StatusRevoked)
}

// RemoveFromRevocationList transitions revoked -> active. Idempotent for
// already-active entries.
func (s *Service) RemoveFromRevocationList(ctx context.Context, token, id string) error {
	org, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	existing, err := s.store.Get(ctx, org, id)
	if err != nil {
		return err
	}
	switch existing.Status {
	case StatusActive:
		return nil
	case StatusDeleted:
		return ErrNotFound
	}
	return s.store.SetStatus(ctx, org, id, StatusActive)
}

// TokenStatus reports the lifecycle status for a jti. This is the internal
// path used by the token validator; it is not credential-gated and reads
// across organizations.
func (s *Service) TokenStatus(ctx context.Context, jti string) (Status, bool, error) {
	e, err := s.store.GetByID(ctx, jti)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.EffectiveStatus(s.now()), true, nil
}

// Record inserts an entry without credential gating. It is the trusted path
// the token signer uses at signing time.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	entry := e.clone()
	if entry.Status == "" {
		entry.Status = StatusActive
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return s.store.Insert(ctx, entry)
}

func (s *Service) readBack(ctx context.Context, org, id string) (*Entry, error) {
	e, err := s.store.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}
	e.Status = e.EffectiveStatus(s.now())
	return e, nil
}
