package keys

import (
	"context"
	"fmt"
	"sync"
)

// Store persists key versions. Append must atomically demote the current
// active version to verify and insert the new version as active.
type Store interface {
	List(ctx context.Context, namespace string) ([]Version, error)
	Append(ctx context.Context, v Version) error
	SetStatus(ctx context.Context, namespace string, version int, status Status) error
}

// MemoryStore keeps key versions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	versions map[string][]Version // namespace -> versions
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string][]Version)}
}

func (s *MemoryStore) List(ctx context.Context, namespace string) ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Version, len(s.versions[namespace]))
	copy(out, s.versions[namespace])
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, v Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[v.Namespace]
	for _, existing := range list {
		if existing.Version == v.Version {
			return fmt.Errorf("keys: version %d already exists in namespace %s", v.Version, v.Namespace)
		}
	}
	for i := range list {
		if list[i].Status == StatusActive {
			list[i].Status = StatusVerify
		}
	}
	v.Status = StatusActive
	s.versions[v.Namespace] = append(list, v)
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, namespace string, version int, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[namespace]
	for i := range list {
		if list[i].Version == version {
			list[i].Status = status
			return nil
		}
	}
	return ErrVersionNotFound
}

var _ Store = (*MemoryStore)(nil)
