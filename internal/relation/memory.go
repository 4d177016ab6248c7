package relation

import (
	"context"
	"strconv"
	"sync"
	"time"

	"catalyst.org/internal/obs"
)

// InMemory implements Client with in-process concurrency safety. It stores
// direct tuples only; Check answers from direct relationship existence, which
// is all the trust core relies on.
type InMemory struct {
	mu   sync.RWMutex
	rows map[string]Relationship
	seq  uint64
}

// NewInMemory creates an empty relationship store.
func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[string]Relationship)}
}

func (s *InMemory) Touch(ctx context.Context, r Relationship) (WriteToken, error) {
	if err := r.Validate(); err != nil {
		obs.RelationshipWrites.WithLabelValues("touch", "invalid").Inc()
		return WriteToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[r.key()] = r
	s.seq++
	obs.RelationshipWrites.WithLabelValues("touch", "ok").Inc()
	return s.token(), nil
}

func (s *InMemory) Delete(ctx context.Context, r Relationship) (WriteToken, error) {
	if err := r.Validate(); err != nil {
		obs.RelationshipWrites.WithLabelValues("delete", "invalid").Inc()
		return WriteToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, r.key())
	s.seq++
	obs.RelationshipWrites.WithLabelValues("delete", "ok").Inc()
	return s.token(), nil
}

func (s *InMemory) Read(ctx context.Context, f Filter) ([]Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Relationship
	for _, r := range s.rows {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemory) Check(ctx context.Context, resource Object, permission string, subject Object) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := Relationship{
		ResourceType: resource.Type,
		ResourceID:   resource.ID,
		Relation:     permission,
		SubjectType:  subject.Type,
		SubjectID:    subject.ID,
	}
	_, ok := s.rows[r.key()]
	return ok, nil
}

// token must be called with s.mu held. The token carries the mutation
// sequence number, so later writes compare greater.
func (s *InMemory) token() WriteToken {
	return WriteToken{
		Token:     "mem-" + strconv.FormatUint(s.seq, 10),
		WrittenAt: time.Now().UTC(),
	}
}

var _ Client = (*InMemory)(nil)
