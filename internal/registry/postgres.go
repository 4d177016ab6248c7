package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGStore persists registry entries in PostgreSQL.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, now: time.Now}
}

const entryColumns = `id, name, description, claims, expiry, organization, status, created_at, updated_at`

func (s *PGStore) Insert(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	claims, err := json.Marshal(e.Claims)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = s.db.ExecContext(ctx,
		`insert into issued_jwts(`+entryColumns+`) values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.Name, e.Description, claims, e.Expiry, e.Organization, string(e.Status), createdAt, createdAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateEntry
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, organization, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+entryColumns+` from issued_jwts where id=$1 and organization=$2`, id, organization)
	return scanEntry(row)
}

func (s *PGStore) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+entryColumns+` from issued_jwts where id=$1`, id)
	return scanEntry(row)
}

func (s *PGStore) List(ctx context.Context, organization string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+entryColumns+` from issued_jwts where organization=$1 order by created_at asc`, organization)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	claims, err := json.Marshal(e.Claims)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`update issued_jwts set name=$1, description=$2, claims=$3, updated_at=$4
		 where id=$5 and organization=$6`,
		e.Name, e.Description, claims, s.now().UTC(), e.ID, e.Organization,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetStatus(ctx context.Context, organization, id string, status Status) error {
	switch status {
	case StatusActive, StatusRevoked, StatusDeleted:
	default:
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidEntry, status)
	}
	res, err := s.db.ExecContext(ctx,
		`update issued_jwts set status=$1, updated_at=$2 where id=$3 and organization=$4`,
		string(status), s.now().UTC(), id, organization,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e         Entry
		claims    []byte
		rawStatus string
	)
	err := row.Scan(&e.ID, &e.Name, &e.Description, &claims, &e.Expiry,
		&e.Organization, &rawStatus, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(claims, &e.Claims); err != nil {
		return nil, err
	}
	e.Status = Status(rawStatus)
	return &e, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE without
// binding to a specific driver error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

var _ Store = (*PGStore)(nil)
