// Package sharing grants and revokes granular channel shares and computes
// the read-eligibility union for data channels. Ownership comes from the
// channel registrar; every access relation lives in the relationship store.
package sharing

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"catalyst.org/internal/audit"
	"catalyst.org/internal/channel"
	"catalyst.org/internal/obs"
	"catalyst.org/internal/relation"
)

var (
	// ErrChannelNotFound means the channel id is unknown to the registrar.
	ErrChannelNotFound = errors.New("catalyst unable to find data channel")

	// ErrNotChannelOwner means the caller's organization does not own the channel.
	ErrNotChannelOwner = errors.New("catalyst asserts user does not own this data channel")

	// ErrPartnershipRequired means no blanket partnership exists between the
	// owner and the target organization.
	ErrPartnershipRequired = errors.New("catalyst requires an existing partnership before sharing channels")

	// ErrNotCustodian means the caller lacks the data_custodian role in their
	// organization.
	ErrNotCustodian = errors.New("caller lacks the data_custodian role")

	// ErrReadDenied means the caller cannot read the channel at all.
	ErrReadDenied = errors.New("caller is not authorized to read this data channel")

	// ErrCallerTokenRequired rejects listSharedChannels calls without a
	// credential. An absent token is an explicit error, never an empty result.
	ErrCallerTokenRequired = errors.New("caller token is required")

	// ErrPartnerRequired rejects share calls without a target organization.
	ErrPartnerRequired = errors.New("partner organization is required")
)

// membershipRelations are the organization relations that count as membership
// for read-eligibility.
var membershipRelations = []string{
	relation.RelationAdmin,
	relation.RelationDataCustodian,
	relation.RelationUser,
}

// Identity resolves a bearer credential to a user and the user's organization.
type Identity interface {
	Subject(ctx context.Context, bearer string) (string, error)
	OrganizationForUser(ctx context.Context, userID string) (string, error)
}

// PathConfig toggles the three read-eligibility paths independently. The zero
// value enables all of them. Disabling one path never affects the others'
// contribution to the union.
type PathConfig struct {
	DisableOwnerPath       bool
	DisablePartnershipPath bool
	DisableSharePath       bool
}

// Service is the channel-share permission surface.
type Service struct {
	rel       relation.Client
	channels  channel.Registrar
	identity  Identity
	namespace string
	paths     PathConfig

	mu    sync.Mutex
	cells map[string]*sync.Mutex
}

// ServiceOption configures optional behavior.
type ServiceOption func(*Service)

// WithPathConfig overrides the read-eligibility path toggles.
func WithPathConfig(cfg PathConfig) ServiceOption {
	return func(s *Service) {
		s.paths = cfg
	}
}

// NewService constructs the sharing service.
func NewService(rel relation.Client, channels channel.Registrar, identity Identity, namespace string, opts ...ServiceOption) (*Service, error) {
	if rel == nil {
		return nil, errors.New("sharing: relationship client is required")
	}
	if channels == nil {
		return nil, errors.New("sharing: channel registrar is required")
	}
	if identity == nil {
		return nil, errors.New("sharing: identity resolver is required")
	}
	if namespace == "" {
		return nil, errors.New("sharing: namespace is required")
	}
	s := &Service{
		rel:       rel,
		channels:  channels,
		identity:  identity,
		namespace: namespace,
		cells:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// channelLock returns the per-channel writer lock. Share mutations against
// one channel never interleave; mutations against different channels run
// concurrently.
func (s *Service) channelLock(channelID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.cells[channelID]
	if !ok {
		lock = &sync.Mutex{}
		s.cells[channelID] = lock
	}
	return lock
}

// custodianContext resolves the caller, requires the data_custodian role, and
// verifies the caller's organization owns the channel. Both share and revoke
// run through the same preconditions.
func (s *Service) custodianContext(ctx context.Context, callerToken, channelID string) (userID, org string, err error) {
	userID, err = s.identity.Subject(ctx, callerToken)
	if err != nil {
		return "", "", err
	}
	org, err = s.identity.OrganizationForUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	custodian, err := s.rel.Check(ctx,
		relation.Object{Type: relation.TypeOrganization, ID: org},
		relation.RelationDataCustodian,
		relation.Object{Type: relation.TypeUser, ID: userID},
	)
	if err != nil {
		return "", "", err
	}
	if !custodian {
		return "", "", ErrNotCustodian
	}
	ch, err := s.channels.Read(ctx, s.namespace, channelID)
	if errors.Is(err, channel.ErrNotFound) {
		return "", "", ErrChannelNotFound
	}
	if err != nil {
		return "", "", err
	}
	if ch.CreatorOrganization != org {
		return "", "", ErrNotChannelOwner
	}
	return userID, org, nil
}

// ShareChannelWithPartner writes a granular share relation for one channel
// and one partner organization. Re-sharing an existing pair succeeds silently.
func (s *Service) ShareChannelWithPartner(ctx context.Context, callerToken, channelID, partnerOrgID string) error {
	if partnerOrgID == "" {
		return ErrPartnerRequired
	}
	userID, org, err := s.custodianContext(ctx, callerToken, channelID)
	if err != nil {
		return err
	}

	partners, err := s.rel.Check(ctx,
		relation.Object{Type: relation.TypeOrganization, ID: org},
		relation.RelationPartner,
		relation.Object{Type: relation.TypeOrganization, ID: partnerOrgID},
	)
	if err != nil {
		return err
	}
	if !partners {
		return ErrPartnershipRequired
	}

	lock := s.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	_, err = s.rel.Touch(ctx, relation.Relationship{
		ResourceType: relation.TypeDataChannel,
		ResourceID:   channelID,
		Relation:     relation.RelationSharedWith,
		SubjectType:  relation.TypeOrganization,
		SubjectID:    partnerOrgID,
	})
	if err != nil {
		return err
	}
	obs.ShareMutations.WithLabelValues("share").Inc()
	_ = audit.LogEvent(audit.WithActor(ctx, userID), "sharing.share_created", map[string]any{
		"channel": channelID,
		"partner": partnerOrgID,
		"owner":   org,
	})
	return nil
}

// RevokeChannelShare removes a granular share relation. The partnership
// precondition does not apply here; revoking an absent share succeeds.
func (s *Service) RevokeChannelShare(ctx context.Context, callerToken, channelID, partnerOrgID string) error {
	if partnerOrgID == "" {
		return ErrPartnerRequired
	}
	userID, org, err := s.custodianContext(ctx, callerToken, channelID)
	if err != nil {
		return err
	}

	lock := s.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	_, err = s.rel.Delete(ctx, relation.Relationship{
		ResourceType: relation.TypeDataChannel,
		ResourceID:   channelID,
		Relation:     relation.RelationSharedWith,
		SubjectType:  relation.TypeOrganization,
		SubjectID:    partnerOrgID,
	})
	if err != nil {
		return err
	}
	obs.ShareMutations.WithLabelValues("revoke").Inc()
	_ = audit.LogEvent(audit.WithActor(ctx, userID), "sharing.share_revoked", map[string]any{
		"channel": channelID,
		"partner": partnerOrgID,
		"owner":   org,
	})
	return nil
}

// ListChannelShares returns the organizations a channel is shared with. Any
// caller who can read the channel may list its partners, not only the
// custodian.
func (s *Service) ListChannelShares(ctx context.Context, callerToken, channelID string) ([]string, error) {
	userID, err := s.identity.Subject(ctx, callerToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.channels.Read(ctx, s.namespace, channelID); err != nil {
		if errors.Is(err, channel.ErrNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	readable, err := s.CanReadFromDataChannel(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !readable {
		return nil, ErrReadDenied
	}

	rows, err := s.rel.Read(ctx, relation.Filter{
		ResourceType: relation.TypeDataChannel,
		ResourceID:   channelID,
		Relation:     relation.RelationSharedWith,
		SubjectType:  relation.TypeOrganization,
	})
	if err != nil {
		return nil, err
	}
	partners := make([]string, 0, len(rows))
	for _, row := range rows {
		partners = append(partners, row.SubjectID)
	}
	return partners, nil
}

// ListSharedChannels returns the channels shared with a partner organization,
// filtered to those the caller is authorized to read. A missing caller token
// is an explicit error, not an empty result.
func (s *Service) ListSharedChannels(ctx context.Context, callerToken, partnerOrgID string) ([]channel.Channel, error) {
	if callerToken == "" {
		return nil, ErrCallerTokenRequired
	}
	userID, err := s.identity.Subject(ctx, callerToken)
	if err != nil {
		return nil, err
	}

	rows, err := s.rel.Read(ctx, relation.Filter{
		ResourceType: relation.TypeDataChannel,
		Relation:     relation.RelationSharedWith,
		SubjectType:  relation.TypeOrganization,
		SubjectID:    partnerOrgID,
	})
	if err != nil {
		return nil, err
	}

	out := make([]channel.Channel, 0, len(rows))
	for _, row := range rows {
		readable, err := s.CanReadFromDataChannel(ctx, row.ResourceID, userID)
		if err != nil {
			return nil, err
		}
		if !readable {
			continue
		}
		ch, err := s.channels.Read(ctx, s.namespace, row.ResourceID)
		if errors.Is(err, channel.ErrNotFound) {
			// A share can outlive the channel record; skip it rather than
			// failing the whole listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// CanReadFromDataChannel reports whether the user may read the channel. The
// decision is the union of three independently evaluated paths: membership in
// the owning organization, membership in an organization with a blanket
// partnership to the owner, and membership in an organization holding a
// granular share on the channel.
func (s *Service) CanReadFromDataChannel(ctx context.Context, channelID, userID string) (bool, error) {
	ch, err := s.channels.Read(ctx, s.namespace, channelID)
	if errors.Is(err, channel.ErrNotFound) {
		return false, ErrChannelNotFound
	}
	if err != nil {
		return false, err
	}
	owner := ch.CreatorOrganization

	var viaOwner, viaPartnership, viaShare bool
	g, gctx := errgroup.WithContext(ctx)

	if !s.paths.DisableOwnerPath {
		g.Go(func() error {
			ok, err := s.isMember(gctx, owner, userID)
			if err != nil {
				return err
			}
			viaOwner = ok
			return nil
		})
	}
	if !s.paths.DisablePartnershipPath {
		g.Go(func() error {
			ok, err := s.memberOfAny(gctx, userID, func(ctx context.Context) ([]string, error) {
				return s.subjectOrgs(ctx, relation.Filter{
					ResourceType: relation.TypeOrganization,
					ResourceID:   owner,
					Relation:     relation.RelationPartner,
					SubjectType:  relation.TypeOrganization,
				})
			})
			if err != nil {
				return err
			}
			viaPartnership = ok
			return nil
		})
	}
	if !s.paths.DisableSharePath {
		g.Go(func() error {
			ok, err := s.memberOfAny(gctx, userID, func(ctx context.Context) ([]string, error) {
				return s.subjectOrgs(ctx, relation.Filter{
					ResourceType: relation.TypeDataChannel,
					ResourceID:   channelID,
					Relation:     relation.RelationSharedWith,
					SubjectType:  relation.TypeOrganization,
				})
			})
			if err != nil {
				return err
			}
			viaShare = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}
	return viaOwner || viaPartnership || viaShare, nil
}

// isMember reports whether the user holds any membership relation in the
// organization.
func (s *Service) isMember(ctx context.Context, orgID, userID string) (bool, error) {
	for _, rel := range membershipRelations {
		ok, err := s.rel.Check(ctx,
			relation.Object{Type: relation.TypeOrganization, ID: orgID},
			rel,
			relation.Object{Type: relation.TypeUser, ID: userID},
		)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// memberOfAny reports whether the user is a member of any organization
// produced by the lookup.
func (s *Service) memberOfAny(ctx context.Context, userID string, lookup func(context.Context) ([]string, error)) (bool, error) {
	orgs, err := lookup(ctx)
	if err != nil {
		return false, err
	}
	for _, org := range orgs {
		ok, err := s.isMember(ctx, org, userID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// subjectOrgs reads the organization subjects matching a filter.
func (s *Service) subjectOrgs(ctx context.Context, f relation.Filter) ([]string, error) {
	rows, err := s.rel.Read(ctx, f)
	if err != nil {
		return nil, err
	}
	orgs := make([]string, 0, len(rows))
	for _, row := range rows {
		orgs = append(orgs, row.SubjectID)
	}
	return orgs, nil
}
