package token

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"catalyst.org/internal/keys"
	"catalyst.org/internal/registry"
)

type fakeRecorder struct {
	entries []*registry.Entry
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, e *registry.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func newTestSigner(t *testing.T, rec Recorder) *Signer {
	t.Helper()
	s, err := NewSigner(keys.NewProvider(keys.NewMemoryStore()), rec, SignerConfig{
		UserTokenTTL:    time.Hour,
		SystemAudience:  "system",
		AllowedServices: []string{"authx_token_api", "dataplane_api"},
	})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	return s
}

func parseClaims(t *testing.T, signed string) *Claims {
	t.Helper()
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(signed, &claims); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	return &claims
}

func TestSignSystemJWTDefaultDuration(t *testing.T) {
	s := newTestSigner(t, nil)
	signed, err := s.SignSystemJWT(context.Background(), "default", SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelIDs:     []string{"dc-1"},
	})
	if err != nil {
		t.Fatalf("SignSystemJWT failed: %v", err)
	}

	claims := parseClaims(t, signed.Token)
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != 300*time.Second {
		t.Fatalf("default duration is %s, want 300s", lifetime)
	}
	if claims.Subject != "system-authx_token_api" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "system" {
		t.Fatalf("unexpected audience: %v", claims.Audience)
	}
	if !strings.HasPrefix(claims.Issuer, "catalyst:default:jwt:") {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestSignSystemJWTExplicitDuration(t *testing.T) {
	s := newTestSigner(t, nil)
	d := int64(1200)
	signed, err := s.SignSystemJWT(context.Background(), "default", SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelIDs:     []string{"dc-1"},
		Duration:       &d,
	})
	if err != nil {
		t.Fatalf("SignSystemJWT failed: %v", err)
	}
	claims := parseClaims(t, signed.Token)
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 1200*time.Second {
		t.Fatalf("duration is %s, want 1200s", got)
	}
}

func TestSignSystemJWTDurationViolations(t *testing.T) {
	s := newTestSigner(t, nil)
	// Negative, zero, and too-large all produce the one message. The huge
	// values would wrap negative if converted to a Duration before the check.
	for _, d := range []int64{-1, 0, 3601, 86400, 10_000_000_000, math.MaxInt64} {
		d := d
		_, err := s.SignSystemJWT(context.Background(), "default", SystemTokenRequest{
			CallingService: "authx_token_api",
			ChannelIDs:     []string{"dc-1"},
			Duration:       &d,
		})
		if err == nil {
			t.Fatalf("duration %d accepted", d)
		}
		if !strings.Contains(err.Error(), "duration exceeds maximum") {
			t.Fatalf("duration %d: unexpected error %q", d, err)
		}
	}

	// The boundary value is legal.
	max := int64(3600)
	if _, err := s.SignSystemJWT(context.Background(), "default", SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelIDs:     []string{"dc-1"},
		Duration:       &max,
	}); err != nil {
		t.Fatalf("duration 3600 rejected: %v", err)
	}
}

func TestSignSystemJWTAllowListIsExact(t *testing.T) {
	s := newTestSigner(t, nil)
	for _, svc := range []string{
		" authx_token_api ",
		"AUTHX_TOKEN_API",
		"authx_token",
		"authx_token_api_extra",
		"unknown_service",
		"",
		"   ",
	} {
		_, err := s.SignSystemJWT(context.Background(), "default", SystemTokenRequest{
			CallingService: svc,
			ChannelIDs:     []string{"dc-1"},
		})
		if err == nil {
			t.Fatalf("service %q accepted", svc)
		}
		if !strings.Contains(err.Error(), "not authorized") {
			t.Fatalf("service %q: unexpected error %q", svc, err)
		}
	}
}

func TestSignSystemJWTChannelResolution(t *testing.T) {
	s := newTestSigner(t, nil)
	ctx := context.Background()

	// channelIds wins entirely over channelId.
	signed, err := s.SignSystemJWT(ctx, "default", SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelID:      "ignored",
		ChannelIDs:     []string{"dc-1", "dc-2"},
	})
	if err != nil {
		t.Fatalf("SignSystemJWT failed: %v", err)
	}
	claims := parseClaims(t, signed.Token)
	if len(claims.Claims) != 2 || claims.Claims[0] != "dc-1" || claims.Claims[1] != "dc-2" {
		t.Fatalf("unexpected claims: %v", claims.Claims)
	}

	// The singular field works alone.
	signed, err = s.SignSystemJWT(ctx, "default", SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelID:      "dc-9",
	})
	if err != nil {
		t.Fatalf("SignSystemJWT failed: %v", err)
	}
	claims = parseClaims(t, signed.Token)
	if len(claims.Claims) != 1 || claims.Claims[0] != "dc-9" {
		t.Fatalf("unexpected claims: %v", claims.Claims)
	}

	// No channel at all is one error class regardless of shape.
	for _, req := range []SystemTokenRequest{
		{CallingService: "authx_token_api"},
		{CallingService: "authx_token_api", ChannelID: ""},
		{CallingService: "authx_token_api", ChannelIDs: []string{}},
	} {
		_, err := s.SignSystemJWT(ctx, "default", req)
		if err == nil || err.Error() != "At least one channelId is required" {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestSignSystemJWTChannelLimits(t *testing.T) {
	s := newTestSigner(t, nil)
	ctx := context.Background()

	long := strings.Repeat("x", MaxChannelIDLen+1)
	if _, err := s.SignSystemJWT(ctx, "default", SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelIDs:     []string{long},
	}); err != ErrChannelTooLong {
		t.Fatalf("expected ErrChannelTooLong, got %v", err)
	}

	many := make([]string, MaxChannelIDs+1)
	for i := range many {
		many[i] = "dc-" + strings.Repeat("a", i+1)
	}
	if _, err := s.SignSystemJWT(ctx, "default", SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelIDs:     many,
	}); err != ErrTooManyChannels {
		t.Fatalf("expected ErrTooManyChannels, got %v", err)
	}
}

func TestSigningProducesDistinctTokens(t *testing.T) {
	s := newTestSigner(t, nil)
	ctx := context.Background()
	req := SystemTokenRequest{
		CallingService: "authx_token_api",
		ChannelIDs:     []string{"dc-1"},
	}
	a, err := s.SignSystemJWT(ctx, "default", req)
	if err != nil {
		t.Fatalf("SignSystemJWT failed: %v", err)
	}
	b, err := s.SignSystemJWT(ctx, "default", req)
	if err != nil {
		t.Fatalf("SignSystemJWT failed: %v", err)
	}
	if a.Token == b.Token {
		t.Fatal("identical inputs produced identical tokens")
	}
	if a.JTI == b.JTI {
		t.Fatal("identical inputs produced identical jti")
	}
}

func TestSignUserTokenRecordsEntry(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestSigner(t, rec)

	signed, err := s.SignUserToken(context.Background(), "default", UserTokenRequest{
		Entity:       "alice@example.org",
		Organization: "org-1",
		Claims:       []string{"dc-1"},
		Audience:     "dataplane",
	})
	if err != nil {
		t.Fatalf("SignUserToken failed: %v", err)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("expected one recorded entry, got %d", len(rec.entries))
	}
	entry := rec.entries[0]
	if entry.ID != signed.JTI {
		t.Fatalf("recorded id %s, want %s", entry.ID, signed.JTI)
	}
	if entry.Organization != "org-1" || entry.Name != "alice@example.org" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Status != registry.StatusActive {
		t.Fatalf("unexpected status: %s", entry.Status)
	}

	claims := parseClaims(t, signed.Token)
	if claims.Subject != "alice@example.org" {
		t.Fatalf("subject is %s, want entity verbatim", claims.Subject)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Fatalf("default user lifetime is %s, want 1h", got)
	}
}

func TestSignUserTokenValidation(t *testing.T) {
	s := newTestSigner(t, nil)
	ctx := context.Background()

	if _, err := s.SignUserToken(ctx, "default", UserTokenRequest{Audience: "a"}); err != ErrEntityRequired {
		t.Fatalf("expected ErrEntityRequired, got %v", err)
	}
	if _, err := s.SignUserToken(ctx, "default", UserTokenRequest{Entity: "e"}); err != ErrAudienceRequired {
		t.Fatalf("expected ErrAudienceRequired, got %v", err)
	}
}
