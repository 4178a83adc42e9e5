package application_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// --- Mock driven ports shared by the application tests ---

type mockCredentialStore struct {
	mu    sync.Mutex
	creds []model.Credential
}

func (m *mockCredentialStore) Insert(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = append(m.creds, cred)
	return nil
}

func (m *mockCredentialStore) LatestByInstitution(_ context.Context, userID string, tag model.InstitutionTag) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Credential
	for i := range m.creds {
		c := m.creds[i]
		if c.UserID != userID || c.Institution != tag {
			continue
		}
		// Later insertion wins ties, matching the repo's rowid tiebreak.
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = &m.creds[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (m *mockCredentialStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.creds {
		if m.creds[i].ID == id {
			stamp := at
			m.creds[i].LastUsedAt = &stamp
			return nil
		}
	}
	return errors.New("credential not found")
}

func (m *mockCredentialStore) CountByInstitution(_ context.Context, userID string, tag model.InstitutionTag) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.creds {
		if c.UserID == userID && c.Institution == tag {
			n++
		}
	}
	return n, nil
}

func (m *mockCredentialStore) DeleteByInstitution(_ context.Context, userID string, tag model.InstitutionTag) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.Credential
	var removed int64
	for _, c := range m.creds {
		if c.UserID == userID && c.Institution == tag {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.creds = kept
	return removed, nil
}

type mockUserStore struct {
	mu      sync.Mutex
	ensured []string
}

func (m *mockUserStore) Ensure(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured = append(m.ensured, id)
	return nil
}

type mockEntityStore struct {
	mu           sync.Mutex
	institutions []model.Institution
	accounts     []model.Account
	transactions []model.Transaction

	upsertInstitutionErr error
	upsertAccountsErr    error
	upsertTxnsErr        error
}

func (m *mockEntityStore) UpsertInstitution(_ context.Context, inst model.Institution) error {
	if m.upsertInstitutionErr != nil {
		return m.upsertInstitutionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.institutions = append(m.institutions, inst)
	return nil
}

func (m *mockEntityStore) UpsertAccounts(_ context.Context, accounts []model.Account) error {
	if m.upsertAccountsErr != nil {
		return m.upsertAccountsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, accounts...)
	return nil
}

func (m *mockEntityStore) UpsertTransactions(_ context.Context, txns []model.Transaction) error {
	if m.upsertTxnsErr != nil {
		return m.upsertTxnsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, txns...)
	return nil
}

func (m *mockEntityStore) ListAccounts(_ context.Context, _ string) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Account{}, m.accounts...), nil
}

func (m *mockEntityStore) ListTransactions(_ context.Context, _ string, _ int) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Transaction{}, m.transactions...), nil
}

type mockProviderClient struct {
	item         driven.ProviderItem
	itemErr      error
	institution  driven.ProviderInstitution
	instErr      error
	accounts     []driven.ProviderAccount
	accountsErr  error
	transactions []driven.ProviderTransaction
	txnsErr      error

	mu              sync.Mutex
	fetchItemCalls  int
	txnWindowStart  time.Time
	txnWindowEnd    time.Time
	accountsFetched chan struct{} // closed when FetchAccounts observes cancellation
}

func (m *mockProviderClient) FetchItem(_ context.Context, _ string) (driven.ProviderItem, error) {
	m.mu.Lock()
	m.fetchItemCalls++
	m.mu.Unlock()
	return m.item, m.itemErr
}

func (m *mockProviderClient) FetchInstitution(_ context.Context, _ string) (driven.ProviderInstitution, error) {
	return m.institution, m.instErr
}

func (m *mockProviderClient) FetchAccounts(ctx context.Context, _ string) ([]driven.ProviderAccount, error) {
	if m.accountsFetched != nil {
		// Simulate a slow remote call; return only on cancellation.
		<-ctx.Done()
		close(m.accountsFetched)
		return nil, ctx.Err()
	}
	return m.accounts, m.accountsErr
}

func (m *mockProviderClient) FetchTransactions(_ context.Context, _ string, start, end time.Time) ([]driven.ProviderTransaction, error) {
	m.mu.Lock()
	m.txnWindowStart = start
	m.txnWindowEnd = end
	m.mu.Unlock()
	return m.transactions, m.txnsErr
}

func (m *mockProviderClient) CreateLinkToken(_ context.Context, _ string) (string, error) {
	return "link-token", nil
}

func (m *mockProviderClient) ExchangePublicToken(_ context.Context, _ string) (string, error) {
	return "access-token", nil
}
