package driven

import (
	"context"
	"encoding/json"
	"time"
)

// ProviderItem is the aggregator's record of one linked institution login.
type ProviderItem struct {
	ItemID        string
	InstitutionID string
}

// ProviderInstitution is the aggregator's institution metadata record.
type ProviderInstitution struct {
	InstitutionID string
	Name          string
	URL           string
}

// ProviderAccountBalances is the balance block nested in an account record.
// Only the currency code is consumed downstream.
type ProviderAccountBalances struct {
	ISOCurrencyCode string
}

// ProviderAccount is one account as reported by the aggregator.
type ProviderAccount struct {
	AccountID    string
	Name         string
	OfficialName string
	Type         string
	Subtype      string
	Mask         string
	Balances     ProviderAccountBalances
}

// ProviderTransaction is one transaction as reported by the aggregator.
// Amount stays a json.Number until normalization so no float drift is
// introduced on the way to an exact decimal.
type ProviderTransaction struct {
	TransactionID string
	AccountID     string
	Name          string
	MerchantName  string
	Amount        json.Number
	Date          string
	Pending       bool
}

// ProviderClient is the driven port for the account-aggregation provider.
// All calls are blocking and may fail on transport or auth errors; callers
// cancel via ctx.
type ProviderClient interface {
	FetchItem(ctx context.Context, accessToken string) (ProviderItem, error)
	FetchInstitution(ctx context.Context, institutionID string) (ProviderInstitution, error)
	FetchAccounts(ctx context.Context, accessToken string) ([]ProviderAccount, error)
	FetchTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]ProviderTransaction, error)

	// Link-flow operations used by the HTTP layer only.
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, error)
}
