package invites

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func pgInvite() *Invite {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	return &Invite{
		ID:        "inv-1",
		Sender:    "Org1",
		Receiver:  "Org2",
		Message:   "hello",
		Status:    StatusPending,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func inviteRows(inv *Invite) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "sender", "receiver", "message", "status", "is_active", "created_at", "updated_at"}).
		AddRow(inv.ID, inv.Sender, inv.Receiver, inv.Message, string(inv.Status), inv.IsActive, inv.CreatedAt, inv.UpdatedAt)
}

func TestPGInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	inv := pgInvite()
	mock.ExpectExec(regexp.QuoteMeta(`insert into org_invites`)).
		WithArgs(inv.ID, inv.Sender, inv.Receiver, inv.Message, "pending", true, inv.CreatedAt, inv.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPGStore(db).Insert(context.Background(), inv); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGInsertValidatesFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	bad := pgInvite()
	bad.Receiver = bad.Sender
	if err := NewPGStore(db).Insert(context.Background(), bad); !errors.Is(err, ErrInvalidInvite) {
		t.Fatalf("expected ErrInvalidInvite, got %v", err)
	}
	// Nothing reached the database.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	inv := pgInvite()
	mock.ExpectQuery(regexp.QuoteMeta(`select `)).
		WithArgs(inv.ID).
		WillReturnRows(inviteRows(inv))

	got, err := NewPGStore(db).Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Sender != "Org1" || got.Status != StatusPending {
		t.Fatalf("unexpected invite: %+v", got)
	}
}

func TestPGGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`select `)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender", "receiver", "message", "status", "is_active", "created_at", "updated_at"}))

	if _, err := NewPGStore(db).Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGUpdateRequiresRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	inv := pgInvite()
	inv.Status = StatusAccepted
	mock.ExpectExec(regexp.QuoteMeta(`update org_invites set`)).
		WithArgs("accepted", true, inv.UpdatedAt, inv.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewPGStore(db).Update(context.Background(), inv); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for zero rows, got %v", err)
	}
}

func TestPGListForOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	inv := pgInvite()
	mock.ExpectQuery(regexp.QuoteMeta(`from org_invites where sender=$1 or receiver=$1`)).
		WithArgs("Org1").
		WillReturnRows(inviteRows(inv))

	out, err := NewPGStore(db).ListForOrganization(context.Background(), "Org1")
	if err != nil {
		t.Fatalf("ListForOrganization failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != "inv-1" {
		t.Fatalf("unexpected listing: %+v", out)
	}
}

func TestPGFindPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	inv := pgInvite()
	mock.ExpectQuery(regexp.QuoteMeta(`where sender=$1 and receiver=$2 and status=$3`)).
		WithArgs("Org1", "Org2", "pending").
		WillReturnRows(inviteRows(inv))

	got, err := NewPGStore(db).FindPending(context.Background(), "Org1", "Org2")
	if err != nil {
		t.Fatalf("FindPending failed: %v", err)
	}
	if got.ID != "inv-1" {
		t.Fatalf("unexpected invite: %+v", got)
	}
}
