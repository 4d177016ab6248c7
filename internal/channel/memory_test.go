package channel

import (
	"context"
	"errors"
	"testing"
)

func TestCreateAssignsID(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	ch, err := s.Create(ctx, "default", Channel{Name: "telemetry", CreatorOrganization: "org-1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ch.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.Read(ctx, "default", ch.ID)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Name != "telemetry" || got.CreatorOrganization != "org-1" {
		t.Fatalf("unexpected channel: %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Create(ctx, "default", Channel{CreatorOrganization: "org-1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := s.Create(ctx, "default", Channel{Name: "telemetry"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNamesAreUniquePerNamespace(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Create(ctx, "default", Channel{Name: "telemetry", CreatorOrganization: "org-1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Create(ctx, "default", Channel{Name: "telemetry", CreatorOrganization: "org-2"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	// Same name under another namespace is fine.
	if _, err := s.Create(ctx, "tenant-1", Channel{Name: "telemetry", CreatorOrganization: "org-2"}); err != nil {
		t.Fatalf("Create in other namespace failed: %v", err)
	}
}

func TestRemoveAndList(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	a, _ := s.Create(ctx, "default", Channel{Name: "a", CreatorOrganization: "org-1"})
	_, _ = s.Create(ctx, "default", Channel{Name: "b", CreatorOrganization: "org-1"})

	items, err := s.List(ctx, "default")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(items))
	}

	if err := s.Remove(ctx, "default", a.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Remove(ctx, "default", a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Read(ctx, "default", a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}
