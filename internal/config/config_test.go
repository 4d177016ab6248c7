package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.Namespace != "default" || cfg.RelationPrefix != "catalyst" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RelationTimeout != 5*time.Second || cfg.UserTokenTTL != time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.SignerServices, []string{"authx_token_api", "dataplane_api"}) {
		t.Fatalf("unexpected signer services: %v", cfg.SignerServices)
	}
	if !reflect.DeepEqual(cfg.RegistryServices, []string{"authx_token_api", "catalyst_node_api"}) {
		t.Fatalf("unexpected registry services: %v", cfg.RegistryServices)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CATALYST_ADDR", ":9999")
	t.Setenv("CATALYST_NAMESPACE", "tenant-1")
	t.Setenv("CATALYST_PG_DSN", "postgres://localhost/catalyst")
	t.Setenv("CATALYST_RELATION_BACKEND_URL", "http://perms:8443")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Namespace != "tenant-1" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PGDSN != "postgres://localhost/catalyst" {
		t.Fatalf("unexpected dsn: %s", cfg.PGDSN)
	}
	if cfg.RelationBackendURL != "http://perms:8443" {
		t.Fatalf("unexpected backend url: %s", cfg.RelationBackendURL)
	}
}

func TestServiceListPreservesNames(t *testing.T) {
	// Names must survive byte-for-byte; only separator whitespace is trimmed.
	t.Setenv("CATALYST_SIGNER_SERVICES", " Svc_One , svc_two ,, ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"Svc_One", "svc_two"}
	if !reflect.DeepEqual(cfg.SignerServices, want) {
		t.Fatalf("unexpected list: %v", cfg.SignerServices)
	}
}

func TestDurationForms(t *testing.T) {
	t.Setenv("CATALYST_RELATION_TIMEOUT", "30")
	t.Setenv("CATALYST_USER_TOKEN_TTL", "45m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RelationTimeout != 30*time.Second {
		t.Fatalf("integer seconds not honored: %v", cfg.RelationTimeout)
	}
	if cfg.UserTokenTTL != 45*time.Minute {
		t.Fatalf("duration string not honored: %v", cfg.UserTokenTTL)
	}
}

func TestInvalidDuration(t *testing.T) {
	t.Setenv("CATALYST_RELATION_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestEmptyNamespaceRejected(t *testing.T) {
	t.Setenv("CATALYST_NAMESPACE", "   ")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for blank namespace")
	}
}
