package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EntityStore = (*EntityRepo)(nil)

// EntityRepo is the SQLite implementation of the EntityStore port. Every
// batch upsert runs in a single transaction and keys on external ids, so a
// re-sync of an unchanged dataset leaves the tables untouched. References
// between entities are resolved from external-id lookup keys at write time.
type EntityRepo struct {
	db *DB
}

// NewEntityRepo creates a new EntityRepo backed by the given DB.
func NewEntityRepo(db *DB) *EntityRepo {
	return &EntityRepo{db: db}
}

// UpsertInstitution inserts or updates an institution by external id.
func (r *EntityRepo) UpsertInstitution(ctx context.Context, inst model.Institution) error {
	const query = `
		INSERT INTO institutions (external_id, name, url)
		VALUES (?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, inst.ExternalID, inst.Name, inst.URL); err != nil {
		return fmt.Errorf("upsert institution %q: %w", inst.ExternalID, err)
	}
	return nil
}

// UpsertAccounts inserts or updates accounts by external id in one
// transaction. The owning institution is resolved from its external id.
func (r *EntityRepo) UpsertAccounts(ctx context.Context, accounts []model.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	const query = `
		INSERT INTO accounts (external_id, name, type, subtype, mask, currency, institution_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT id FROM institutions WHERE external_id = ?), ?)
		ON CONFLICT(external_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			subtype = excluded.subtype,
			mask = excluded.mask,
			currency = excluded.currency,
			institution_id = excluded.institution_id
	`

	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare account upsert: %w", err)
		}
		defer stmt.Close()

		for _, a := range accounts {
			_, err := stmt.ExecContext(ctx,
				a.ExternalID, a.Name, a.Type, a.Subtype, a.Mask, a.Currency,
				a.InstitutionExternalID, a.UserID,
			)
			if err != nil {
				return fmt.Errorf("upsert account %q: %w", a.ExternalID, err)
			}
		}
		return nil
	})
}

// UpsertTransactions inserts or updates transactions by external id in one
// transaction. The owning account is resolved from its external id.
func (r *EntityRepo) UpsertTransactions(ctx context.Context, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	const query = `
		INSERT INTO transactions (external_id, account_id, date, amount, payee, description, user_id)
		VALUES (?, (SELECT id FROM accounts WHERE external_id = ?), ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			account_id = excluded.account_id,
			date = excluded.date,
			amount = excluded.amount,
			payee = excluded.payee,
			description = excluded.description
	`

	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare transaction upsert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txns {
			_, err := stmt.ExecContext(ctx,
				t.ExternalID, t.AccountExternalID, formatTime(t.Date),
				t.Amount.String(), t.Payee, t.Description, t.UserID,
			)
			if err != nil {
				return fmt.Errorf("upsert transaction %q: %w", t.ExternalID, err)
			}
		}
		return nil
	})
}

// ListAccounts returns all accounts owned by the user, joined back to their
// institution's external id, ordered by name.
func (r *EntityRepo) ListAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	const query = `
		SELECT a.id, a.external_id, a.name, a.type, a.subtype, a.mask, a.currency,
		       COALESCE(i.external_id, ''), a.user_id
		FROM accounts a
		LEFT JOIN institutions i ON i.id = a.institution_id
		WHERE a.user_id = ?
		ORDER BY a.name
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Name, &a.Type, &a.Subtype,
			&a.Mask, &a.Currency, &a.InstitutionExternalID, &a.UserID); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// ListTransactions returns the user's transactions newest-first, joined back
// to their account's external id. limit <= 0 means no limit.
func (r *EntityRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	query := `
		SELECT t.id, t.external_id, COALESCE(a.external_id, ''), t.date, t.amount,
		       t.payee, t.description, t.user_id
		FROM transactions t
		LEFT JOIN accounts a ON a.id = t.account_id
		WHERE t.user_id = ?
		ORDER BY t.date DESC, t.id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		var date, amount string
		if err := rows.Scan(&t.ID, &t.ExternalID, &t.AccountExternalID, &date,
			&amount, &t.Payee, &t.Description, &t.UserID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("parse date for transaction %q: %w", t.ExternalID, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount for transaction %q: %w", t.ExternalID, err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txns, nil
}

// inTx runs fn inside a write transaction, rolling back on error.
func (r *EntityRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
