package invites

import (
	"context"
	"errors"
	"strings"
	"time"

	"catalyst.org/internal/audit"
	"catalyst.org/internal/ids"
	"catalyst.org/internal/relation"
)

// Service drives the invite state machine. Accepting an invite writes the
// blanket partnership relation in both directions through the relationship
// client.
type Service struct {
	store Store
	rel   relation.Client
	now   func() time.Time
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

// NewService constructs the invite service.
func NewService(store Store, rel relation.Client, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("invites: store is required")
	}
	if rel == nil {
		return nil, errors.New("invites: relationship client is required")
	}
	svc := &Service{store: store, rel: rel, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Send creates a pending invite from sender to receiver. A second send for
// the same direction while one is still pending is rejected rather than
// silently duplicated.
func (s *Service) Send(ctx context.Context, sender, receiver, message string) (*Invite, error) {
	sender = strings.TrimSpace(sender)
	receiver = strings.TrimSpace(receiver)

	now := s.now().UTC()
	inv := &Invite{
		ID:        ids.New(),
		Sender:    sender,
		Receiver:  receiver,
		Message:   message,
		Status:    StatusPending,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.FindPending(ctx, sender, receiver)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicatePending
	}

	if err := s.store.Insert(ctx, inv); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "invites.sent", map[string]any{
		"sender":   sender,
		"receiver": receiver,
	})
	return inv.clone(), nil
}

// Respond resolves a pending invite. Only the receiver may respond; the
// sender acting on its own invite fails. Accept writes the partnership
// relation in both directions before the status change is persisted, so a
// stored accepted invite always has its partnership in place.
func (s *Service) Respond(ctx context.Context, actingOrg, inviteID string, status Status) (*Invite, error) {
	if status != StatusAccepted && status != StatusDeclined {
		return nil, ErrInvalidStatus
	}
	inv, err := s.store.Get(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}
	if actingOrg != inv.Receiver {
		return nil, ErrNotReceiver
	}

	if status == StatusAccepted {
		if err := s.touchPartnership(ctx, inv.Sender, inv.Receiver); err != nil {
			return nil, err
		}
	}

	updated := inv.clone()
	updated.Status = status
	if status == StatusDeclined {
		updated.IsActive = false
	}
	updated.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, updated); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "invites.responded", map[string]any{
		"sender":   inv.Sender,
		"receiver": inv.Receiver,
		"status":   string(status),
	})
	return updated.clone(), nil
}

// ListForOrganization returns the organization's invites, sent and received.
// Declined invites disappear from both parties' listings; accepted ones stay.
func (s *Service) ListForOrganization(ctx context.Context, org string) ([]*Invite, error) {
	all, err := s.store.ListForOrganization(ctx, org)
	if err != nil {
		return nil, err
	}
	out := make([]*Invite, 0, len(all))
	for _, inv := range all {
		if inv.Status == StatusDeclined {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

// touchPartnership writes the blanket partnership in both directions. Touch
// is idempotent, so a retry after a partial failure converges.
func (s *Service) touchPartnership(ctx context.Context, a, b string) error {
	pairs := [][2]string{{a, b}, {b, a}}
	for _, p := range pairs {
		_, err := s.rel.Touch(ctx, relation.Relationship{
			ResourceType: relation.TypeOrganization,
			ResourceID:   p[0],
			Relation:     relation.RelationPartner,
			SubjectType:  relation.TypeOrganization,
			SubjectID:    p[1],
		})
		if err != nil {
			return err
		}
	}
	return nil
}
