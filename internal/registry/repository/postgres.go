package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/provenant-id/provenant/internal/registry/model"
	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// PostgresStore persists credential records, the subject index, and authority
// assignments in PostgreSQL. It implements CredentialStore and AuthorityStore.
//
// Per-key mutation exclusivity uses a transaction-scoped advisory lock keyed
// by the (subject, category) digest, so the absent-record case is covered as
// well as the row-exists case. Readers see only committed state.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// advisoryLockID derives a stable int64 lock key for a credential key.
func advisoryLockID(subject ethid.Address, category ethid.Hash) int64 {
	h := credsig.Keccak256(subject.Bytes(), category.Bytes())
	return int64(binary.BigEndian.Uint64(h[:8])) //nolint:gosec // wraparound is fine for a lock key
}

// Get implements CredentialStore.
func (s *PostgresStore) Get(ctx context.Context, subject ethid.Address, category ethid.Hash) (*model.CredentialRecord, error) {
	return s.load(ctx, s.db, subject, category)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) load(ctx context.Context, q querier, subject ethid.Address, category ethid.Hash) (*model.CredentialRecord, error) {
	rec := &model.CredentialRecord{Subject: subject, Category: category}

	var revokedAt *time.Time
	var revokedBy []byte
	err := q.QueryRow(ctx,
		`SELECT revoked, revocation_reason, revoked_at, revoked_by
		 FROM credentials WHERE subject = $1 AND category = $2`,
		subject.Bytes(), category.Bytes(),
	).Scan(&rec.Revoked, &rec.RevocationReason, &revokedAt, &revokedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	rec.Exists = true
	if revokedAt != nil {
		rec.RevokedAt = *revokedAt
	}
	copy(rec.RevokedBy[:], revokedBy)

	rows, err := q.Query(ctx,
		`SELECT payload_hash, storage_ref, authority, created_at
		 FROM credential_versions
		 WHERE subject = $1 AND category = $2
		 ORDER BY ordinal ASC`,
		subject.Bytes(), category.Bytes(),
	)
	if err != nil {
		return nil, fmt.Errorf("load credential versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.CredentialVersion
		var payloadHash, authority []byte
		if err := rows.Scan(&payloadHash, &v.StorageRef, &authority, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential version: %w", err)
		}
		copy(v.PayloadHash[:], payloadHash)
		copy(v.Authority[:], authority)
		rec.Versions = append(rec.Versions, v)
	}
	return rec, rows.Err()
}

// Mutate implements CredentialStore. The whole mutation — read, transition,
// write — runs in one transaction under a per-key advisory lock; a failing
// fn rolls everything back.
func (s *PostgresStore) Mutate(ctx context.Context, subject ethid.Address, category ethid.Hash, fn MutateFunc) (*model.CredentialRecord, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockID(subject, category)); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	rec, err := s.load(ctx, tx, subject, category)
	existed := true
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		existed = false
		rec = &model.CredentialRecord{Subject: subject, Category: category}
	}
	prevVersions := len(rec.Versions)

	if err := fn(rec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var revokedAt *time.Time
	var revokedBy []byte
	if rec.Revoked {
		t := rec.RevokedAt
		revokedAt = &t
		revokedBy = rec.RevokedBy.Bytes()
	}

	if !existed {
		if !rec.Exists {
			// fn declined to create anything; nothing to persist.
			return rec.Clone(), tx.Commit(ctx)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO credentials (subject, category, revoked, revocation_reason, revoked_at, revoked_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			subject.Bytes(), category.Bytes(),
			rec.Revoked, rec.RevocationReason, revokedAt, revokedBy, now,
		); err != nil {
			return nil, fmt.Errorf("insert credential: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx,
			`UPDATE credentials
			 SET revoked = $3, revocation_reason = $4, revoked_at = $5, revoked_by = $6, updated_at = $7
			 WHERE subject = $1 AND category = $2`,
			subject.Bytes(), category.Bytes(),
			rec.Revoked, rec.RevocationReason, revokedAt, revokedBy, now,
		); err != nil {
			return nil, fmt.Errorf("update credential: %w", err)
		}
	}

	for i := prevVersions; i < len(rec.Versions); i++ {
		v := rec.Versions[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO credential_versions (subject, category, ordinal, payload_hash, storage_ref, authority, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			subject.Bytes(), category.Bytes(), i+1,
			v.PayloadHash.Bytes(), v.StorageRef, v.Authority.Bytes(), v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert credential version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit credential mutation: %w", err)
	}
	return rec.Clone(), nil
}

// SubjectCategories implements CredentialStore. Insertion order comes from
// the credentials sequence column, so enumeration is deterministic.
func (s *PostgresStore) SubjectCategories(ctx context.Context, subject ethid.Address) ([]ethid.Hash, error) {
	rows, err := s.db.Query(ctx,
		`SELECT category FROM credentials WHERE subject = $1 ORDER BY seq ASC`,
		subject.Bytes(),
	)
	if err != nil {
		return nil, fmt.Errorf("list subject categories: %w", err)
	}
	defer rows.Close()

	var cats []ethid.Hash
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan subject category: %w", err)
		}
		var c ethid.Hash
		copy(c[:], raw)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetAuthority implements AuthorityStore.
func (s *PostgresStore) GetAuthority(ctx context.Context, category ethid.Hash) (ethid.Address, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT authority FROM authorities WHERE category = $1`, category.Bytes(),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ethid.ZeroAddress, nil
		}
		return ethid.ZeroAddress, fmt.Errorf("get authority: %w", err)
	}
	var a ethid.Address
	copy(a[:], raw)
	return a, nil
}

// SetAuthority implements AuthorityStore.
func (s *PostgresStore) SetAuthority(ctx context.Context, category ethid.Hash, authority ethid.Address) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO authorities (category, authority, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (category) DO UPDATE SET authority = EXCLUDED.authority, updated_at = EXCLUDED.updated_at`,
		category.Bytes(), authority.Bytes(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set authority: %w", err)
	}
	return nil
}
