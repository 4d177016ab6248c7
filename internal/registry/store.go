package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists registry entries. Implementations re-validate entries before
// every write regardless of what the service layer already checked.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	Get(ctx context.Context, organization, id string) (*Entry, error)
	// GetByID looks an entry up across organizations. Used by the token
	// validator's revocation check, which only knows the jti.
	GetByID(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, organization string) ([]*Entry, error)
	Update(ctx context.Context, e *Entry) error
	SetStatus(ctx context.Context, organization, id string, status Status) error
}

// ErrDuplicateEntry signals an insert with an id that already exists.
var ErrDuplicateEntry = fmt.Errorf("%w: duplicate id", ErrInvalidEntry)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry // id -> entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return ErrDuplicateEntry
	}
	stored := e.clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.entries[e.ID] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, organization, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.Organization != organization {
		return nil, ErrNotFound
	}
	return e.clone(), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, organization string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entry
	for _, e := range s.entries {
		if e.Organization == organization {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[e.ID]
	if !ok || existing.Organization != e.Organization {
		return ErrNotFound
	}
	stored := e.clone()
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = s.now().UTC()
	s.entries[e.ID] = stored
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, organization, id string, status Status) error {
	switch status {
	case StatusActive, StatusRevoked, StatusDeleted:
	default:
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidEntry, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.Organization != organization {
		return ErrNotFound
	}
	e.Status = status
	e.UpdatedAt = s.now().UTC()
	return nil
}

var _ Store = (*MemoryStore)(nil)
