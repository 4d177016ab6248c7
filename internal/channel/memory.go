package channel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"catalyst.org/internal/ids"
)

// InMemory is a registrar for tests and single-process deployments. Channel
// names are unique per namespace; that is the registrar's only invariant.
type InMemory struct {
	mu       sync.RWMutex
	channels map[string]map[string]Channel // namespace -> id -> channel
}

func NewInMemory() *InMemory {
	return &InMemory{channels: make(map[string]map[string]Channel)}
}

func (s *InMemory) Create(ctx context.Context, namespace string, ch Channel) (Channel, error) {
	ch.Name = strings.TrimSpace(ch.Name)
	if ch.Name == "" {
		return Channel{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(ch.CreatorOrganization) == "" {
		return Channel{}, fmt.Errorf("%w: creatorOrganization is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.channels[namespace]
	if ns == nil {
		ns = make(map[string]Channel)
		s.channels[namespace] = ns
	}
	for _, existing := range ns {
		if existing.Name == ch.Name {
			return Channel{}, fmt.Errorf("%w: name %q", ErrAlreadyExists, ch.Name)
		}
	}
	if ch.ID == "" {
		ch.ID = ids.New()
	}
	if _, ok := ns[ch.ID]; ok {
		return Channel{}, fmt.Errorf("%w: id %q", ErrAlreadyExists, ch.ID)
	}
	ns[ch.ID] = ch
	return ch, nil
}

func (s *InMemory) Read(ctx context.Context, namespace, id string) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[namespace][id]
	if !ok {
		return Channel{}, ErrNotFound
	}
	return ch, nil
}

func (s *InMemory) Update(ctx context.Context, namespace string, ch Channel) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.channels[namespace]
	if _, ok := ns[ch.ID]; !ok {
		return Channel{}, ErrNotFound
	}
	ch.Name = strings.TrimSpace(ch.Name)
	if ch.Name == "" {
		return Channel{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	for id, existing := range ns {
		if id != ch.ID && existing.Name == ch.Name {
			return Channel{}, fmt.Errorf("%w: name %q", ErrAlreadyExists, ch.Name)
		}
	}
	ns[ch.ID] = ch
	return ch, nil
}

func (s *InMemory) Remove(ctx context.Context, namespace, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.channels[namespace]
	if _, ok := ns[id]; !ok {
		return ErrNotFound
	}
	delete(ns, id)
	return nil
}

func (s *InMemory) List(ctx context.Context, namespace string) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Channel
	for _, ch := range s.channels[namespace] {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Registrar = (*InMemory)(nil)
