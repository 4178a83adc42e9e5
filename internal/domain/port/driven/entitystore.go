package driven

import (
	"context"

	"github.com/dkendall/ledgerlink/internal/domain/model"
)

// EntityStore is the driven port for the persistent entity graph. Each
// Upsert call is atomic (one transaction per batch) and keys on the
// entity's external identifier, so repeated syncs of an unchanged dataset
// are idempotent. Records reference each other by external-id lookup keys;
// the adapter resolves those to row ids at write time.
type EntityStore interface {
	UpsertInstitution(ctx context.Context, inst model.Institution) error
	UpsertAccounts(ctx context.Context, accounts []model.Account) error
	UpsertTransactions(ctx context.Context, txns []model.Transaction) error

	ListAccounts(ctx context.Context, userID string) ([]model.Account, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
}
