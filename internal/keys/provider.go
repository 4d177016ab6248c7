package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"catalyst.org/internal/obs"
)

// Provider hands out signing and verification keys per namespace. Mutations
// against one namespace are serialized through its cell; reads work on an
// immutable snapshot and never block behind a writer.
type Provider struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	cells map[string]*cell
}

type cell struct {
	mu   sync.Mutex // single writer per namespace
	snap atomic.Pointer[snapshot]
}

// snapshot is immutable once published.
type snapshot struct {
	active     *Version
	versions   []Version // active + verify, ascending by version number
	maxVersion int       // highest version ever issued, retired included
}

// NewProvider creates a Provider backed by the given store.
func NewProvider(store Store) *Provider {
	return &Provider{
		store: store,
		now:   time.Now,
		cells: make(map[string]*cell),
	}
}

func (p *Provider) cell(namespace string) *cell {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cells[namespace]
	if !ok {
		c = &cell{}
		p.cells[namespace] = c
	}
	return c
}

// ActiveSigningKey returns the namespace's active keypair, lazily generating
// and persisting one on first use. The key is durable before any caller can
// observe it, so a signature is never issued under an unpersisted key.
func (p *Provider) ActiveSigningKey(ctx context.Context, namespace string) (Version, error) {
	c := p.cell(namespace)
	if s := c.snap.Load(); s != nil && s.active != nil {
		return *s.active, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.snap.Load(); s != nil && s.active != nil {
		return *s.active, nil
	}

	s, err := p.reload(ctx, namespace)
	if err != nil {
		return Version{}, err
	}
	if s.active == nil {
		if err := p.appendVersion(ctx, namespace, s.maxVersion+1); err != nil {
			return Version{}, err
		}
		s, err = p.reload(ctx, namespace)
		if err != nil {
			return Version{}, err
		}
		if s.active == nil {
			return Version{}, ErrNoActiveKey
		}
	}
	c.snap.Store(s)
	return *s.active, nil
}

// Rotate creates a new active version. The previous active version is demoted
// to verification-only and keeps validating existing tokens until retired.
func (p *Provider) Rotate(ctx context.Context, namespace string) (Version, error) {
	// Ensure the namespace is bootstrapped so rotation always increments.
	if _, err := p.ActiveSigningKey(ctx, namespace); err != nil {
		return Version{}, err
	}

	c := p.cell(namespace)
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snap.Load()
	if err := p.appendVersion(ctx, namespace, s.maxVersion+1); err != nil {
		return Version{}, err
	}
	s, err := p.reload(ctx, namespace)
	if err != nil {
		return Version{}, err
	}
	c.snap.Store(s)
	obs.KeyRotations.WithLabelValues(namespace).Inc()
	return *s.active, nil
}

// Retire removes a historical version from the verification set. The active
// version cannot be retired; rotate first.
func (p *Provider) Retire(ctx context.Context, namespace string, version int) error {
	c := p.cell(namespace)
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snap.Load()
	if s == nil {
		loaded, err := p.reload(ctx, namespace)
		if err != nil {
			return err
		}
		s = loaded
	}
	if s.active != nil && s.active.Version == version {
		return ErrRetireActive
	}
	if err := p.store.SetStatus(ctx, namespace, version, StatusRetired); err != nil {
		return err
	}
	next, err := p.reload(ctx, namespace)
	if err != nil {
		return err
	}
	c.snap.Store(next)
	return nil
}

// PublicKeys returns the active and verification versions, bootstrapping the
// namespace if needed. Private key material is stripped.
func (p *Provider) PublicKeys(ctx context.Context, namespace string) ([]Version, error) {
	if _, err := p.ActiveSigningKey(ctx, namespace); err != nil {
		return nil, err
	}
	s := p.cell(namespace).snap.Load()
	out := make([]Version, 0, len(s.versions))
	for _, v := range s.versions {
		v.Private = nil
		out = append(out, v)
	}
	return out, nil
}

// JWKS renders the namespace's public key set as a JWK set document.
func (p *Provider) JWKS(ctx context.Context, namespace string) ([]byte, error) {
	versions, err := p.PublicKeys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return buildJWKS(versions)
}

// VerificationKey resolves a public key by kid within a namespace, covering
// all retained versions, not only the active one.
func (p *Provider) VerificationKey(ctx context.Context, namespace, kid string) (ed25519.PublicKey, error) {
	if _, err := p.ActiveSigningKey(ctx, namespace); err != nil {
		return nil, err
	}
	s := p.cell(namespace).snap.Load()
	for _, v := range s.versions {
		if v.KID == kid {
			return v.Public, nil
		}
	}
	return nil, ErrUnknownKID
}

// appendVersion generates and persists a fresh keypair as the new active
// version. Must be called with the namespace cell locked.
func (p *Provider) appendVersion(ctx context.Context, namespace string, version int) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	return p.store.Append(ctx, Version{
		Namespace: namespace,
		Version:   version,
		KID:       KID(namespace, version),
		Public:    pub,
		Private:   priv,
		Status:    StatusActive,
		CreatedAt: p.now().UTC(),
	})
}

// reload builds a fresh snapshot from the store. Must be called with the
// namespace cell locked.
func (p *Provider) reload(ctx context.Context, namespace string) (*snapshot, error) {
	all, err := p.store.List(ctx, namespace)
	if err != nil {
		return nil, err
	}
	s := &snapshot{}
	for _, v := range all {
		if v.Version > s.maxVersion {
			s.maxVersion = v.Version
		}
		if v.Status == StatusRetired {
			continue
		}
		s.versions = append(s.versions, v)
	}
	sort.Slice(s.versions, func(i, j int) bool { return s.versions[i].Version < s.versions[j].Version })
	for i := range s.versions {
		if s.versions[i].Status == StatusActive {
			s.active = &s.versions[i]
		}
	}
	return s, nil
}
