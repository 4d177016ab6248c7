package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func pgEntry() *Entry {
	return &Entry{
		ID:           "jti-1",
		Name:         "pipeline token",
		Claims:       []string{"dc-1"},
		Expiry:       time.Now().Add(time.Hour).UTC(),
		Organization: "org-1",
		Status:       StatusActive,
	}
}

func TestPGInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into issued_jwts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.Insert(context.Background(), pgEntry()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGInsertRejectsInvalidEntry(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	bad := pgEntry()
	bad.ID = ""
	// The store re-validates: nothing must reach the database.
	if err := store.Insert(context.Background(), bad); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestPGInsertDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into issued_jwts").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint (SQLSTATE 23505)`))

	store := NewPGStore(db)
	if err := store.Insert(context.Background(), pgEntry()); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestPGGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "claims", "expiry", "organization", "status", "created_at", "updated_at"}).
		AddRow("jti-1", "pipeline token", "", []byte(`["dc-1"]`), now.Add(time.Hour), "org-1", "active", now, now)
	mock.ExpectQuery("select (.+) from issued_jwts where id=\\$1 and organization=\\$2").
		WithArgs("jti-1", "org-1").
		WillReturnRows(rows)

	store := NewPGStore(db)
	e, err := store.Get(context.Background(), "org-1", "jti-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e.ID != "jti-1" || len(e.Claims) != 1 || e.Status != StatusActive {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestPGGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select (.+) from issued_jwts where id=\\$1 and organization=\\$2").
		WithArgs("missing", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewPGStore(db)
	if _, err := store.Get(context.Background(), "org-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGSetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update issued_jwts set status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.SetStatus(context.Background(), "org-1", "jti-1", StatusRevoked); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	// Derived expired must never be written to storage.
	if err := store.SetStatus(context.Background(), "org-1", "jti-1", StatusExpired); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for stored expired, got %v", err)
	}
}
