package sqlite

import (
	"context"
	"fmt"

	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Ensure creates the user row if it does not already exist.
func (r *UserRepo) Ensure(ctx context.Context, id string) error {
	const query = `INSERT OR IGNORE INTO users (id) VALUES (?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("ensure user %q: %w", id, err)
	}
	return nil
}
