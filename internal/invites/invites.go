// Package invites implements the organization invitation lifecycle that
// establishes blanket partnerships between organizations.
package invites

import (
	"context"
	"errors"
	"time"
)

// Status is an invite's lifecycle state. Pending is the only non-terminal
// state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

var (
	ErrNotFound         = errors.New("invites: invite not found")
	ErrNotReceiver      = errors.New("invites: only the receiving organization may respond")
	ErrAlreadyResolved  = errors.New("invites: invite is already resolved")
	ErrDuplicatePending = errors.New("invites: a pending invite already exists for this pair")
	ErrInvalidStatus    = errors.New("invites: response status must be accepted or declined")
	ErrInvalidInvite    = errors.New("invites: invalid invite")
)

// Invite is one organization-to-organization invitation. IsActive goes false
// only on decline; accepted invites remain listed for both parties.
type Invite struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Message   string    `json:"message,omitempty"`
	Status    Status    `json:"status"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const maxFieldLen = 255

// Validate rejects malformed invites before they reach a store. Stores
// re-validate independently.
func (i *Invite) Validate() error {
	if i == nil {
		return ErrInvalidInvite
	}
	if i.ID == "" || len(i.ID) > maxFieldLen {
		return ErrInvalidInvite
	}
	if i.Sender == "" || len(i.Sender) > maxFieldLen {
		return ErrInvalidInvite
	}
	if i.Receiver == "" || len(i.Receiver) > maxFieldLen {
		return ErrInvalidInvite
	}
	if i.Sender == i.Receiver {
		return ErrInvalidInvite
	}
	switch i.Status {
	case StatusPending, StatusAccepted, StatusDeclined:
	default:
		return ErrInvalidInvite
	}
	return nil
}

func (i *Invite) clone() *Invite {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

// Store persists invites.
type Store interface {
	Insert(ctx context.Context, inv *Invite) error
	Get(ctx context.Context, id string) (*Invite, error)
	Update(ctx context.Context, inv *Invite) error
	// ListForOrganization returns every invite where the organization is the
	// sender or the receiver, oldest first.
	ListForOrganization(ctx context.Context, org string) ([]*Invite, error)
	// FindPending returns the pending invite from sender to receiver, or
	// ErrNotFound.
	FindPending(ctx context.Context, sender, receiver string) (*Invite, error)
}
