// Package relation is a thin client for the external Zanzibar-style
// permission backend. It owns request shaping and idempotency semantics;
// transitive permission evaluation stays on the backend side.
package relation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resource and subject type names used by the trust core. The configured
// tenant prefix is applied by the client implementations, not by callers.
const (
	TypeOrganization = "organization"
	TypeDataChannel  = "data_channel"
	TypeUser         = "user"
)

// Relations written and read by the trust core.
const (
	RelationAdmin         = "admin"
	RelationDataCustodian = "data_custodian"
	RelationUser          = "user"
	RelationPartner       = "partner_organization"
	RelationOwner         = "organization"
	RelationSharedWith    = "shared_with"
)

var (
	// ErrInvalidRelationship indicates a malformed tuple rejected before any
	// network call.
	ErrInvalidRelationship = errors.New("relation: invalid relationship")

	// ErrBackendUnavailable indicates the permission backend timed out or was
	// unreachable. The outcome of the call is unknown; callers must not treat
	// this as a denial.
	ErrBackendUnavailable = errors.New("relation: permission backend unavailable")
)

// Relationship is one typed relation row. All five fields are required.
type Relationship struct {
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	Relation     string `json:"relation"`
	SubjectType  string `json:"subjectType"`
	SubjectID    string `json:"subjectId"`
}

const maxFieldLen = 255

// Validate rejects malformed tuples at the client boundary.
func (r Relationship) Validate() error {
	fields := map[string]string{
		"resourceType": r.ResourceType,
		"resourceId":   r.ResourceID,
		"relation":     r.Relation,
		"subjectType":  r.SubjectType,
		"subjectId":    r.SubjectID,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidRelationship, name)
		}
		if len(v) > maxFieldLen {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidRelationship, name, maxFieldLen)
		}
	}
	return nil
}

func (r Relationship) key() string {
	return r.ResourceType + "\x00" + r.ResourceID + "\x00" + r.Relation + "\x00" + r.SubjectType + "\x00" + r.SubjectID
}

// Object names a resource or subject.
type Object struct {
	Type string
	ID   string
}

// Filter narrows a relationship read. Empty fields match everything.
type Filter struct {
	ResourceType string
	ResourceID   string
	Relation     string
	SubjectType  string
	SubjectID    string
}

func (f Filter) matches(r Relationship) bool {
	if f.ResourceType != "" && f.ResourceType != r.ResourceType {
		return false
	}
	if f.ResourceID != "" && f.ResourceID != r.ResourceID {
		return false
	}
	if f.Relation != "" && f.Relation != r.Relation {
		return false
	}
	if f.SubjectType != "" && f.SubjectType != r.SubjectType {
		return false
	}
	if f.SubjectID != "" && f.SubjectID != r.SubjectID {
		return false
	}
	return true
}

// WriteToken is the backend's acknowledgement of a relationship write.
type WriteToken struct {
	Token     string    `json:"token"`
	WrittenAt time.Time `json:"writtenAt"`
}

// Client issues relationship writes and reads against the permission backend.
// Touch and Delete are idempotent so network retries after an ambiguous
// failure are always safe to repeat.
type Client interface {
	// Touch upserts a relationship. Re-touching an existing row succeeds.
	Touch(ctx context.Context, r Relationship) (WriteToken, error)
	// Delete removes a relationship. Deleting an absent row succeeds.
	Delete(ctx context.Context, r Relationship) (WriteToken, error)
	// Read streams the relationship rows matching the filter.
	Read(ctx context.Context, f Filter) ([]Relationship, error)
	// Check asks the backend whether subject holds permission on resource.
	Check(ctx context.Context, resource Object, permission string, subject Object) (bool, error)
}
