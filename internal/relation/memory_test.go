package relation

import (
	"context"
	"errors"
	"testing"
)

func membership(org, user string) Relationship {
	return Relationship{
		ResourceType: TypeOrganization,
		ResourceID:   org,
		Relation:     RelationUser,
		SubjectType:  TypeUser,
		SubjectID:    user,
	}
}

func TestTouchIsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	r := membership("org-1", "alice@example.org")

	if _, err := s.Touch(ctx, r); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if _, err := s.Touch(ctx, r); err != nil {
		t.Fatalf("re-Touch failed: %v", err)
	}

	rows, err := s.Read(ctx, Filter{ResourceID: "org-1"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row after double touch, got %d", len(rows))
	}
}

func TestWriteTokensAreMonotonic(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first, err := s.Touch(ctx, membership("org-1", "alice@example.org"))
	if err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	second, err := s.Delete(ctx, membership("org-1", "alice@example.org"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if first.Token != "mem-1" || second.Token != "mem-2" {
		t.Fatalf("expected sequence-numbered tokens, got %q then %q", first.Token, second.Token)
	}
}

func TestDeleteAbsentSucceeds(t *testing.T) {
	s := NewInMemory()
	if _, err := s.Delete(context.Background(), membership("org-1", "nobody@example.org")); err != nil {
		t.Fatalf("Delete of absent row failed: %v", err)
	}
}

func TestValidationRejectsMalformedTuples(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	bad := membership("org-1", "alice@example.org")
	bad.Relation = ""
	if _, err := s.Touch(ctx, bad); !errors.Is(err, ErrInvalidRelationship) {
		t.Fatalf("expected ErrInvalidRelationship, got %v", err)
	}

	long := membership("org-1", "alice@example.org")
	long.ResourceID = string(make([]byte, 256))
	if _, err := s.Touch(ctx, long); !errors.Is(err, ErrInvalidRelationship) {
		t.Fatalf("expected ErrInvalidRelationship for oversized field, got %v", err)
	}
}

func TestReadFilters(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, _ = s.Touch(ctx, membership("org-1", "alice@example.org"))
	_, _ = s.Touch(ctx, membership("org-1", "bob@example.org"))
	_, _ = s.Touch(ctx, membership("org-2", "alice@example.org"))

	rows, err := s.Read(ctx, Filter{ResourceID: "org-1"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	rows, err = s.Read(ctx, Filter{SubjectID: "alice@example.org"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	rows, err = s.Read(ctx, Filter{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("empty filter should match everything, got %d", len(rows))
	}
}

func TestCheck(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, _ = s.Touch(ctx, membership("org-1", "alice@example.org"))

	ok, err := s.Check(ctx,
		Object{Type: TypeOrganization, ID: "org-1"},
		RelationUser,
		Object{Type: TypeUser, ID: "alice@example.org"})
	if err != nil || !ok {
		t.Fatalf("expected check to pass, got %v %v", ok, err)
	}

	ok, err = s.Check(ctx,
		Object{Type: TypeOrganization, ID: "org-1"},
		RelationAdmin,
		Object{Type: TypeUser, ID: "alice@example.org"})
	if err != nil || ok {
		t.Fatalf("expected check to fail, got %v %v", ok, err)
	}
}
