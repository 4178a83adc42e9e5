package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one settled ledger entry, unique by the aggregator-assigned
// external identifier. Date is normalized to midnight UTC. Pending
// transactions are filtered out before they ever reach this type's store.
// AccountExternalID is a lookup key resolved by the store at write time.
type Transaction struct {
	ID                int64
	ExternalID        string
	AccountExternalID string
	Date              time.Time
	Amount            decimal.Decimal
	Payee             string
	Description       string
	UserID            string
}
