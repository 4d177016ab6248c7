// Package channel consumes the external data-channel metadata registrar.
// The registrar is the source of truth for channel ownership and metadata;
// access relations live in the relationship store, not here.
package channel

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("channel: not found")
	ErrAlreadyExists = errors.New("channel: already exists")
	ErrInvalidInput  = errors.New("channel: invalid input")
)

// Channel is the metadata record held by the registrar.
type Channel struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	Endpoint            string `json:"endpoint,omitempty"`
	CreatorOrganization string `json:"creatorOrganization"`
	AccessSwitch        bool   `json:"accessSwitch"`
}

// Registrar is the consumed contract of the channel metadata service.
type Registrar interface {
	Create(ctx context.Context, namespace string, ch Channel) (Channel, error)
	Read(ctx context.Context, namespace, id string) (Channel, error)
	Update(ctx context.Context, namespace string, ch Channel) (Channel, error)
	Remove(ctx context.Context, namespace, id string) error
	List(ctx context.Context, namespace string) ([]Channel, error)
}
