package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// It persists already-encrypted rows; the vault owns the cipher. Rows are
// append-only per (user, institution): re-storing adds a newer row and
// reads pick the latest by created_at.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Insert writes a new credential row.
func (r *CredentialRepo) Insert(ctx context.Context, cred model.Credential) error {
	const query = `
		INSERT INTO credentials (id, user_id, institution, ciphertext, iv, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		cred.ID, cred.UserID, string(cred.Institution),
		cred.Ciphertext, cred.IV, formatTime(cred.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert credential for %q: %w", cred.Institution, err)
	}
	return nil
}

// LatestByInstitution returns the most recently created credential for the
// (user, institution) pair, or nil when none exists.
func (r *CredentialRepo) LatestByInstitution(ctx context.Context, userID string, tag model.InstitutionTag) (*model.Credential, error) {
	const query = `
		SELECT id, user_id, institution, ciphertext, iv, created_at, last_used_at
		FROM credentials
		WHERE user_id = ? AND institution = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`

	var cred model.Credential
	var institution, createdAt string
	var lastUsedAt sql.NullString

	err := r.db.Reader.QueryRowContext(ctx, query, userID, string(tag)).Scan(
		&cred.ID, &cred.UserID, &institution,
		&cred.Ciphertext, &cred.IV, &createdAt, &lastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query credential for %q: %w", tag, err)
	}

	cred.Institution = model.InstitutionTag(institution)
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for credential %q: %w", cred.ID, err)
	}
	if lastUsedAt.Valid {
		t, err := parseTime(lastUsedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_used_at for credential %q: %w", cred.ID, err)
		}
		cred.LastUsedAt = &t
	}

	return &cred, nil
}

// TouchLastUsed stamps the last-used timestamp on a credential row.
func (r *CredentialRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE credentials SET last_used_at = ? WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), id); err != nil {
		return fmt.Errorf("touch credential %q: %w", id, err)
	}
	return nil
}

// CountByInstitution returns how many credential rows exist for the pair.
func (r *CredentialRepo) CountByInstitution(ctx context.Context, userID string, tag model.InstitutionTag) (int, error) {
	const query = `SELECT COUNT(*) FROM credentials WHERE user_id = ? AND institution = ?`
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, query, userID, string(tag)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credentials for %q: %w", tag, err)
	}
	return n, nil
}

// DeleteByInstitution removes every credential row for the pair, including
// superseded ones, and returns how many were removed.
func (r *CredentialRepo) DeleteByInstitution(ctx context.Context, userID string, tag model.InstitutionTag) (int64, error) {
	const query = `DELETE FROM credentials WHERE user_id = ? AND institution = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, userID, string(tag))
	if err != nil {
		return 0, fmt.Errorf("delete credentials for %q: %w", tag, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete credentials for %q: rows affected: %w", tag, err)
	}
	return n, nil
}
