package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeAuthn struct {
	orgs map[string]string // token -> organization
}

func (f *fakeAuthn) OrganizationForToken(ctx context.Context, token string) (string, error) {
	org, ok := f.orgs[token]
	if !ok {
		return "", errors.New("unknown credential")
	}
	return org, nil
}

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	authn := &fakeAuthn{orgs: map[string]string{
		"tok-org1": "org-1",
		"tok-org2": "org-2",
	}}
	svc, err := NewService(store, authn, []string{"authx_token_api", "catalyst_node_api"}, opts...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, store
}

func validEntry(id string) *Entry {
	return &Entry{
		ID:     id,
		Name:   "pipeline token",
		Claims: []string{"dc-1"},
		Expiry: time.Now().Add(time.Hour),
	}
}

func TestAuthenticationFailuresAreByteIdentical(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var messages []string
	collect := func(err error) {
		if err == nil {
			t.Fatal("expected authentication failure")
		}
		messages = append(messages, err.Error())
	}

	for _, cred := range []string{"", "   ", "bogus", "another-bogus"} {
		_, err := svc.Create(ctx, cred, validEntry("jti-x"))
		collect(err)
		_, err = svc.Get(ctx, cred, "jti-x")
		collect(err)
		_, err = svc.List(ctx, cred)
		collect(err)
		_, err = svc.Update(ctx, cred, validEntry("jti-x"))
		collect(err)
		collect(svc.Delete(ctx, cred, "jti-x"))
		collect(svc.AddToRevocationList(ctx, cred, "jti-x"))
		collect(svc.RemoveFromRevocationList(ctx, cred, "jti-x"))
	}

	for _, msg := range messages {
		if msg != "Authentication failed" {
			t.Fatalf("sanitization leaked detail: %q", msg)
		}
	}
}

func TestCreateAssignsCallerOrganization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e := validEntry("jti-1")
	e.Organization = "org-other" // ignored: the credential decides
	created, err := svc.Create(ctx, "tok-org1", e)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Organization != "org-1" {
		t.Fatalf("organization is %s, want org-1", created.Organization)
	}
	if created.Status != StatusActive {
		t.Fatalf("status is %s, want active", created.Status)
	}
}

func TestCreateSystemAllowListIsExact(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, svcName := range []string{"", " authx_token_api ", "AUTHX_TOKEN_API", "authx", "authx_token_api2"} {
		_, err := svc.CreateSystem(ctx, svcName, validEntry("jti-sys"))
		if !errors.Is(err, ErrUnauthorizedService) {
			t.Fatalf("service %q: expected ErrUnauthorizedService, got %v", svcName, err)
		}
		if err.Error() != "Unauthorized service" {
			t.Fatalf("unexpected message: %q", err.Error())
		}
	}

	e := validEntry("jti-sys")
	e.Organization = "org-1"
	if _, err := svc.CreateSystem(ctx, "authx_token_api", e); err != nil {
		t.Fatalf("CreateSystem failed: %v", err)
	}
}

func TestCreateSystemDuplicateIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := validEntry("jti-dup")
	first.Organization = "org-1"
	first.Name = "original"
	if _, err := svc.CreateSystem(ctx, "authx_token_api", first); err != nil {
		t.Fatalf("CreateSystem failed: %v", err)
	}

	second := validEntry("jti-dup")
	second.Organization = "org-2"
	second.Name = "imposter"
	got, err := svc.CreateSystem(ctx, "authx_token_api", second)
	if err != nil {
		t.Fatalf("duplicate CreateSystem errored: %v", err)
	}
	if got.Name != "original" || got.Organization != "org-1" {
		t.Fatalf("duplicate overwrote the first entry: %+v", got)
	}
}

func TestGetDerivesExpiredStatus(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	e := validEntry("jti-exp")
	e.Expiry = now.Add(time.Minute)
	if _, err := svc.Create(ctx, "tok-org1", e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := svc.Get(ctx, "tok-org1", "jti-exp")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("status is %s before expiry", got.Status)
	}

	now = now.Add(2 * time.Minute)
	got, err = svc.Get(ctx, "tok-org1", "jti-exp")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("status is %s after expiry, want derived expired", got.Status)
	}
}

func TestOrganizationScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "tok-org1", validEntry("jti-scope")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Get(ctx, "tok-org2", "jti-scope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-organization read succeeded: %v", err)
	}
	items, err := svc.List(ctx, "tok-org2")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("cross-organization listing returned %d entries", len(items))
	}
}

func TestUpdateMutatesDescriptiveFieldsOnly(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "tok-org1", validEntry("jti-upd")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	patch := validEntry("jti-upd")
	patch.Name = "renamed"
	patch.Description = "new description"
	patch.Claims = []string{"dc-1", "dc-2", "dc-3"}
	patch.Expiry = time.Now().Add(100 * time.Hour)
	updated, err := svc.Update(ctx, "tok-org1", patch)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "renamed" || updated.Description != "new description" {
		t.Fatalf("descriptive fields not updated: %+v", updated)
	}

	stored, err := store.GetByID(ctx, "jti-upd")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(stored.Claims) != 1 {
		t.Fatal("claims mutated after issuance")
	}
}

func TestRevocationTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "tok-org1", validEntry("jti-rev")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// active -> revoked, idempotent.
	if err := svc.AddToRevocationList(ctx, "tok-org1", "jti-rev"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := svc.AddToRevocationList(ctx, "tok-org1", "jti-rev"); err != nil {
		t.Fatalf("repeat revoke failed: %v", err)
	}
	got, err := svc.Get(ctx, "tok-org1", "jti-rev")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusRevoked {
		t.Fatalf("status is %s, want revoked", got.Status)
	}

	// revoked -> active, idempotent.
	if err := svc.RemoveFromRevocationList(ctx, "tok-org1", "jti-rev"); err != nil {
		t.Fatalf("unrevoke failed: %v", err)
	}
	if err := svc.RemoveFromRevocationList(ctx, "tok-org1", "jti-rev"); err != nil {
		t.Fatalf("repeat unrevoke failed: %v", err)
	}

	// deleted entries vanish from reads and reject revocation changes.
	if err := svc.Delete(ctx, "tok-org1", "jti-rev"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Delete(ctx, "tok-org1", "jti-rev"); err != nil {
		t.Fatalf("repeat delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, "tok-org1", "jti-rev"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted entry still readable: %v", err)
	}
	if err := svc.AddToRevocationList(ctx, "tok-org1", "jti-rev"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoking a deleted entry: %v", err)
	}
}

func TestTokenStatus(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	e := validEntry("jti-status")
	e.Expiry = now.Add(time.Minute)
	if _, err := svc.Create(ctx, "tok-org1", e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	st, found, err := svc.TokenStatus(ctx, "jti-status")
	if err != nil || !found || st != StatusActive {
		t.Fatalf("unexpected status: %s %v %v", st, found, err)
	}

	_, found, err = svc.TokenStatus(ctx, "never-issued")
	if err != nil || found {
		t.Fatalf("expected not found, got found=%v err=%v", found, err)
	}

	now = now.Add(2 * time.Minute)
	st, found, err = svc.TokenStatus(ctx, "jti-status")
	if err != nil || !found || st != StatusExpired {
		t.Fatalf("expected derived expired, got %s %v %v", st, found, err)
	}
}

func TestEntryValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	badExpired := &Entry{
		ID:     "jti-bad",
		Expiry: time.Now().Add(time.Hour),
		Status: StatusExpired,
	}
	cases := map[string]*Entry{
		"nil entry":      nil,
		"missing id":     {Expiry: time.Now().Add(time.Hour), Status: StatusActive},
		"stored expired": badExpired,
	}
	for name, e := range cases {
		if _, err := svc.Create(ctx, "tok-org1", e); !errors.Is(err, ErrInvalidEntry) {
			t.Fatalf("%s: expected ErrInvalidEntry, got %v", name, err)
		}
	}
}
