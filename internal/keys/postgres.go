package keys

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"fmt"
)

// PGStore persists key versions in PostgreSQL. Raw Ed25519 key bytes are
// stored as bytea; access to the table is the trust boundary.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) List(ctx context.Context, namespace string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`select namespace, version, kid, public_key, private_key, status, created_at
		 from signing_keys where namespace=$1 order by version asc`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var (
			v         Version
			pub       []byte
			priv      []byte
			rawStatus string
		)
		if err := rows.Scan(&v.Namespace, &v.Version, &v.KID, &pub, &priv, &rawStatus, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Public = ed25519.PublicKey(pub)
		v.Private = ed25519.PrivateKey(priv)
		v.Status = Status(rawStatus)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PGStore) Append(ctx context.Context, v Version) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`update signing_keys set status=$1 where namespace=$2 and status=$3`,
		string(StatusVerify), v.Namespace, string(StatusActive)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into signing_keys(namespace, version, kid, public_key, private_key, status, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		v.Namespace, v.Version, v.KID, []byte(v.Public), []byte(v.Private), string(StatusActive), v.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) SetStatus(ctx context.Context, namespace string, version int, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`update signing_keys set status=$1 where namespace=$2 and version=$3`,
		string(status), namespace, version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("keys: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionNotFound
	}
	return nil
}

var _ Store = (*PGStore)(nil)
