package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// Normalization: pure mapping from provider-shaped records to domain
// entities. No storage or network access. Missing required fields are
// explicit errors (never silently defaulted) so the sync service can
// attribute each failure to its source record.

const defaultCurrency = "USD"

// transactionDateLayout is the provider's calendar-date format. Parsing in
// UTC yields the required midnight-UTC instant.
const transactionDateLayout = "2006-01-02"

// NormalizeInstitution maps a provider institution record to the domain
// entity.
func NormalizeInstitution(in driven.ProviderInstitution) (model.Institution, error) {
	if in.InstitutionID == "" {
		return model.Institution{}, fmt.Errorf("institution missing institution_id")
	}
	if in.Name == "" {
		return model.Institution{}, fmt.Errorf("institution %q missing name", in.InstitutionID)
	}

	return model.Institution{
		ExternalID: in.InstitutionID,
		Name:       in.Name,
		URL:        in.URL,
	}, nil
}

// NormalizeAccount maps a provider account record to the domain entity,
// attaching institution and user references as lookup keys. Currency comes
// from the nested balance block, defaulting to USD when the provider omits
// it.
func NormalizeAccount(in driven.ProviderAccount, institutionExternalID, userID string) (model.Account, error) {
	if in.AccountID == "" {
		return model.Account{}, fmt.Errorf("account missing account_id")
	}

	name := in.Name
	if name == "" {
		name = in.OfficialName
	}
	if name == "" {
		return model.Account{}, fmt.Errorf("account %q missing name", in.AccountID)
	}

	currency := in.Balances.ISOCurrencyCode
	if currency == "" {
		currency = defaultCurrency
	}

	return model.Account{
		ExternalID:            in.AccountID,
		Name:                  name,
		Type:                  in.Type,
		Subtype:               in.Subtype,
		Mask:                  in.Mask,
		Currency:              currency,
		InstitutionExternalID: institutionExternalID,
		UserID:                userID,
	}, nil
}

// NormalizeTransaction maps a provider transaction record to the domain
// entity. Pending transactions normalize to nil: they are never
// materialized. Amounts are parsed straight from the wire number into an
// exact decimal, and the calendar date becomes midnight UTC.
func NormalizeTransaction(in driven.ProviderTransaction, userID string) (*model.Transaction, error) {
	if in.Pending {
		return nil, nil
	}

	if in.TransactionID == "" {
		return nil, fmt.Errorf("transaction missing transaction_id")
	}
	if in.AccountID == "" {
		return nil, fmt.Errorf("transaction %q missing account_id", in.TransactionID)
	}
	if in.Amount == "" {
		return nil, fmt.Errorf("transaction %q missing amount", in.TransactionID)
	}

	amount, err := decimal.NewFromString(in.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("transaction %q has invalid amount %q: %w", in.TransactionID, in.Amount, err)
	}

	date, err := time.ParseInLocation(transactionDateLayout, in.Date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("transaction %q has invalid date %q: %w", in.TransactionID, in.Date, err)
	}

	payee := in.MerchantName
	if payee == "" {
		payee = in.Name
	}

	return &model.Transaction{
		ExternalID:        in.TransactionID,
		AccountExternalID: in.AccountID,
		Date:              date,
		Amount:            amount,
		Payee:             payee,
		Description:       in.Name,
		UserID:            userID,
	}, nil
}
