package invites

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGStore persists invites in PostgreSQL.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, now: time.Now}
}

const inviteColumns = `id, sender, receiver, message, status, is_active, created_at, updated_at`

func (s *PGStore) Insert(ctx context.Context, inv *Invite) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`insert into org_invites(`+inviteColumns+`) values($1,$2,$3,$4,$5,$6,$7,$8)`,
		inv.ID, inv.Sender, inv.Receiver, inv.Message, string(inv.Status), inv.IsActive,
		inv.CreatedAt, inv.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Invite, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+inviteColumns+` from org_invites where id=$1`, id)
	return scanInvite(row)
}

func (s *PGStore) Update(ctx context.Context, inv *Invite) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`update org_invites set status=$1, is_active=$2, updated_at=$3 where id=$4`,
		string(inv.Status), inv.IsActive, inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListForOrganization(ctx context.Context, org string) ([]*Invite, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+inviteColumns+` from org_invites where sender=$1 or receiver=$1 order by created_at asc, id asc`, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *PGStore) FindPending(ctx context.Context, sender, receiver string) (*Invite, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+inviteColumns+` from org_invites
		 where sender=$1 and receiver=$2 and status=$3
		 order by created_at desc limit 1`,
		sender, receiver, string(StatusPending))
	return scanInvite(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvite(row rowScanner) (*Invite, error) {
	var (
		inv       Invite
		rawStatus string
	)
	err := row.Scan(&inv.ID, &inv.Sender, &inv.Receiver, &inv.Message, &rawStatus,
		&inv.IsActive, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	inv.Status = Status(rawStatus)
	return &inv, nil
}

var _ Store = (*PGStore)(nil)
