package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"catalyst.org/internal/keys"
	"catalyst.org/internal/obs"
	"catalyst.org/internal/registry"
)

// Recorder is the registry write path the signer uses at signing time.
type Recorder interface {
	Record(ctx context.Context, e *registry.Entry) error
}

// Signer issues signed tokens under a namespace's active key.
type Signer struct {
	keys     *keys.Provider
	recorder Recorder

	allowedServices map[string]struct{}
	userTTL         time.Duration
	systemAudience  string
	now             func() time.Time
}

// SignerConfig wires the signer's fixed policy. AllowedServices is copied.
type SignerConfig struct {
	UserTokenTTL    time.Duration
	SystemAudience  string
	AllowedServices []string
}

// SignerOption configures optional signer behavior.
type SignerOption func(*Signer)

// WithSignerClock overrides the time source (useful for tests).
func WithSignerClock(fn func() time.Time) SignerOption {
	return func(s *Signer) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSigner constructs a Signer.
func NewSigner(provider *keys.Provider, recorder Recorder, cfg SignerConfig, opts ...SignerOption) (*Signer, error) {
	if provider == nil {
		return nil, errors.New("token: key provider is required")
	}
	if cfg.UserTokenTTL <= 0 {
		cfg.UserTokenTTL = time.Hour
	}
	if cfg.SystemAudience == "" {
		cfg.SystemAudience = "system"
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedServices))
	for _, name := range cfg.AllowedServices {
		allowed[name] = struct{}{}
	}
	s := &Signer{
		keys:            provider,
		recorder:        recorder,
		allowedServices: allowed,
		userTTL:         cfg.UserTokenTTL,
		systemAudience:  cfg.SystemAudience,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignUserToken issues a token for a human principal and records it in the
// registry. The subject is the entity string verbatim.
func (s *Signer) SignUserToken(ctx context.Context, namespace string, req UserTokenRequest) (*SignedToken, error) {
	if strings.TrimSpace(req.Entity) == "" {
		return nil, ErrEntityRequired
	}
	if strings.TrimSpace(req.Audience) == "" {
		return nil, ErrAudienceRequired
	}
	if err := validateChannelIDs(req.Claims); err != nil {
		return nil, err
	}

	ttl := req.ExpiresIn
	if ttl <= 0 {
		ttl = s.userTTL
	}
	signed, err := s.sign(ctx, namespace, req.Entity, req.Audience, req.Claims, ttl)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		entry := &registry.Entry{
			ID:           signed.JTI,
			Name:         req.Entity,
			Claims:       req.Claims,
			Expiry:       signed.ExpiresAt,
			Organization: req.Organization,
			Status:       registry.StatusActive,
		}
		if err := s.recorder.Record(ctx, entry); err != nil {
			return nil, fmt.Errorf("token: record issued token: %w", err)
		}
	}
	obs.TokensIssued.WithLabelValues("user").Inc()
	return signed, nil
}

// SignSystemJWT issues a token for a service principal. Validation runs in a
// fixed order and stops at the first failure; each step has its own error.
// System tokens reach the registry through the separately authenticated
// createSystem path, not here.
func (s *Signer) SignSystemJWT(ctx context.Context, namespace string, req SystemTokenRequest) (*SignedToken, error) {
	// Allow-list matching is exact and case-sensitive on the raw value.
	// Trimming only decides emptiness, never acceptance.
	if strings.TrimSpace(req.CallingService) == "" {
		return nil, fmt.Errorf("%s %w", req.CallingService, ErrNotAuthorized)
	}
	if _, ok := s.allowedServices[req.CallingService]; !ok {
		return nil, fmt.Errorf("%s %w", req.CallingService, ErrNotAuthorized)
	}

	// ChannelIDs wins entirely; the singular field is ignored, not merged.
	channelIDs := req.ChannelIDs
	if len(channelIDs) == 0 && req.ChannelID != "" {
		channelIDs = []string{req.ChannelID}
	}
	if len(channelIDs) == 0 {
		return nil, ErrChannelRequired
	}
	if err := validateChannelIDs(channelIDs); err != nil {
		return nil, err
	}

	duration := DefaultSystemDuration
	if req.Duration != nil {
		// Bounds are checked in seconds before any Duration conversion; the
		// multiplication would wrap for absurdly large inputs.
		d := *req.Duration
		if d <= 0 || d > int64(MaxSystemDuration/time.Second) {
			return nil, ErrDurationExceedsMaximum
		}
		duration = time.Duration(d) * time.Second
	}

	signed, err := s.sign(ctx, namespace, "system-"+req.CallingService, s.systemAudience, channelIDs, duration)
	if err != nil {
		return nil, err
	}
	obs.TokensIssued.WithLabelValues("system").Inc()
	return signed, nil
}

// sign builds and signs the compact token under the namespace's active key.
// Every call mints a fresh jti, so identical inputs never produce identical
// tokens.
func (s *Signer) sign(ctx context.Context, namespace, subject, audience string, channelClaims []string, ttl time.Duration) (*SignedToken, error) {
	key, err := s.keys.ActiveSigningKey(ctx, namespace)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		Claims: channelClaims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    key.Issuer(),
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = key.KID
	tok.Header["typ"] = "JWT"

	signed, err := tok.SignedString(key.Private)
	if err != nil {
		return nil, fmt.Errorf("token: sign: %w", err)
	}
	return &SignedToken{
		Token:     signed,
		JTI:       jti,
		Issuer:    key.Issuer(),
		ExpiresAt: exp,
	}, nil
}

// validateChannelIDs enforces per-id length and the distinct-count cap. The
// list order is preserved; nothing is de-duplicated here.
func validateChannelIDs(ids []string) error {
	distinct := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if len(id) > MaxChannelIDLen {
			return ErrChannelTooLong
		}
		distinct[id] = struct{}{}
	}
	if len(distinct) > MaxChannelIDs {
		return ErrTooManyChannels
	}
	return nil
}
