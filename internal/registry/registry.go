// Package registry keeps the durable, per-organization record of every
// issued token's lifecycle. The token validator consults it for revocation;
// callers mutate it through credential-gated operations whose authorization
// failures are deliberately flattened to one generic message.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status values stored for an issued token. "expired" is derived at read
// time from the expiry timestamp and is never written to storage.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusDeleted Status = "deleted"
	StatusExpired Status = "expired"
)

const (
	// MaxClaims bounds the channel-id claims carried by one token.
	MaxClaims = 50
	// MaxClaimLen bounds each individual claim value.
	MaxClaimLen = 255
)

var (
	// ErrAuthenticationFailed is the single sanitized message returned for
	// every credential or permission failure on the registry surface. The
	// literal text is load-bearing: callers and tests compare it exactly.
	ErrAuthenticationFailed = errors.New("Authentication failed")

	// ErrUnauthorizedService rejects createSystem callers that are absent
	// from the allow-list or empty.
	ErrUnauthorizedService = errors.New("Unauthorized service")

	ErrNotFound     = errors.New("registry: entry not found")
	ErrInvalidEntry = errors.New("registry: invalid entry")
)

// Entry records one issued token.
type Entry struct {
	ID           string    `json:"id"` // the token's jti
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Claims       []string  `json:"claims"`
	Expiry       time.Time `json:"expiry"`
	Organization string    `json:"organization"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate enforces the entry schema. The storage layer calls this again
// before any write: a malformed entry must never reach persistent state even
// if an outer check is bypassed.
func (e *Entry) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Organization) == "" {
		return fmt.Errorf("%w: organization is required", ErrInvalidEntry)
	}
	if e.Expiry.IsZero() {
		return fmt.Errorf("%w: expiry is required", ErrInvalidEntry)
	}
	if len(e.Claims) > MaxClaims {
		return fmt.Errorf("%w: more than %d claims", ErrInvalidEntry, MaxClaims)
	}
	for _, c := range e.Claims {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: empty claim value", ErrInvalidEntry)
		}
		if len(c) > MaxClaimLen {
			return fmt.Errorf("%w: claim exceeds %d characters", ErrInvalidEntry, MaxClaimLen)
		}
	}
	switch e.Status {
	case StatusActive, StatusRevoked, StatusDeleted:
	case "":
		return fmt.Errorf("%w: status is required", ErrInvalidEntry)
	default:
		// StatusExpired is read-time derived and must not be stored.
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidEntry, e.Status)
	}
	return nil
}

// EffectiveStatus derives the read-time status: an active entry past its
// expiry reads as expired while storage still says active.
func (e *Entry) EffectiveStatus(now time.Time) Status {
	if e.Status == StatusActive && now.After(e.Expiry) {
		return StatusExpired
	}
	return e.Status
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Claims = make([]string, len(e.Claims))
	copy(out.Claims, e.Claims)
	return &out
}
