package invites

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps invites in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	invites map[string]*Invite // id -> invite
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invites: make(map[string]*Invite)}
}

func (s *MemoryStore) Insert(ctx context.Context, inv *Invite) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[inv.ID]; ok {
		return ErrInvalidInvite
	}
	s.invites[inv.ID] = inv.clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inv.clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, inv *Invite) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.invites[inv.ID]
	if !ok {
		return ErrNotFound
	}
	stored := inv.clone()
	stored.CreatedAt = existing.CreatedAt
	s.invites[inv.ID] = stored
	return nil
}

func (s *MemoryStore) ListForOrganization(ctx context.Context, org string) ([]*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Invite
	for _, inv := range s.invites {
		if inv.Sender == org || inv.Receiver == org {
			out = append(out, inv.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) FindPending(ctx context.Context, sender, receiver string) (*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invites {
		if inv.Status == StatusPending && inv.Sender == sender && inv.Receiver == receiver {
			return inv.clone(), nil
		}
	}
	return nil, ErrNotFound
}

var _ Store = (*MemoryStore)(nil)
