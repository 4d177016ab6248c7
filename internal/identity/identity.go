// Package identity resolves bearer credentials to a user and the user's
// organization by combining token validation with relationship reads.
package identity

import (
	"context"
	"errors"
	"sort"

	"catalyst.org/internal/relation"
	"catalyst.org/internal/token"
)

var (
	ErrInvalidCredential = errors.New("identity: invalid credential")
	ErrNoOrganization    = errors.New("identity: user belongs to no organization")
)

// membershipRelations are the organization relations that make a user a
// member for identity purposes.
var membershipRelations = map[string]struct{}{
	relation.RelationAdmin:         {},
	relation.RelationDataCustodian: {},
	relation.RelationUser:          {},
}

// Resolver validates tokens under a fixed namespace and maps subjects to
// organizations.
type Resolver struct {
	validator *token.Validator
	rel       relation.Client
	namespace string
}

func NewResolver(validator *token.Validator, rel relation.Client, namespace string) (*Resolver, error) {
	if validator == nil {
		return nil, errors.New("identity: validator is required")
	}
	if rel == nil {
		return nil, errors.New("identity: relationship client is required")
	}
	if namespace == "" {
		return nil, errors.New("identity: namespace is required")
	}
	return &Resolver{validator: validator, rel: rel, namespace: namespace}, nil
}

// Subject returns the validated token's subject.
func (r *Resolver) Subject(ctx context.Context, bearer string) (string, error) {
	res, err := r.validator.Validate(ctx, bearer, r.namespace)
	if err != nil {
		return "", err
	}
	if !res.Valid {
		return "", ErrInvalidCredential
	}
	return res.Subject, nil
}

// OrganizationForToken validates the credential and resolves the subject's
// organization. It satisfies the registry's Authenticator contract.
func (r *Resolver) OrganizationForToken(ctx context.Context, bearer string) (string, error) {
	subject, err := r.Subject(ctx, bearer)
	if err != nil {
		return "", err
	}
	return r.OrganizationForUser(ctx, subject)
}

// OrganizationForUser finds the organization holding a membership relation
// for the user. When the user appears in several organizations the smallest
// identifier wins, so the answer is deterministic.
func (r *Resolver) OrganizationForUser(ctx context.Context, userID string) (string, error) {
	rows, err := r.rel.Read(ctx, relation.Filter{
		ResourceType: relation.TypeOrganization,
		SubjectType:  relation.TypeUser,
		SubjectID:    userID,
	})
	if err != nil {
		return "", err
	}
	var orgs []string
	for _, row := range rows {
		if _, ok := membershipRelations[row.Relation]; ok {
			orgs = append(orgs, row.ResourceID)
		}
	}
	if len(orgs) == 0 {
		return "", ErrNoOrganization
	}
	sort.Strings(orgs)
	return orgs[0], nil
}
