package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/dkendall/ledgerlink/internal/adapter/driving/http"
	"github.com/dkendall/ledgerlink/internal/application"
	"github.com/dkendall/ledgerlink/internal/crypto"
	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// --- Minimal fakes for the driven ports ---

type fakeCredentialStore struct {
	mu    sync.Mutex
	creds map[string]model.Credential
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{creds: map[string]model.Credential{}}
}

func (f *fakeCredentialStore) Insert(_ context.Context, cred model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[cred.ID] = cred
	return nil
}

func (f *fakeCredentialStore) LatestByInstitution(_ context.Context, userID string, tag model.InstitutionTag) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.Credential
	for id := range f.creds {
		c := f.creds[id]
		if c.UserID != userID || c.Institution != tag {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = &c
		}
	}
	return latest, nil
}

func (f *fakeCredentialStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[id]
	if ok {
		c.LastUsedAt = &at
		f.creds[id] = c
	}
	return nil
}

func (f *fakeCredentialStore) CountByInstitution(_ context.Context, userID string, tag model.InstitutionTag) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.creds {
		if c.UserID == userID && c.Institution == tag {
			n++
		}
	}
	return n, nil
}

func (f *fakeCredentialStore) DeleteByInstitution(_ context.Context, userID string, tag model.InstitutionTag) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, c := range f.creds {
		if c.UserID == userID && c.Institution == tag {
			delete(f.creds, id)
			removed++
		}
	}
	return removed, nil
}

type fakeUserStore struct{}

func (fakeUserStore) Ensure(context.Context, string) error { return nil }

type fakeEntityStore struct {
	accounts     []model.Account
	transactions []model.Transaction
}

func (f *fakeEntityStore) UpsertInstitution(context.Context, model.Institution) error { return nil }
func (f *fakeEntityStore) UpsertAccounts(context.Context, []model.Account) error      { return nil }
func (f *fakeEntityStore) UpsertTransactions(context.Context, []model.Transaction) error {
	return nil
}

func (f *fakeEntityStore) ListAccounts(context.Context, string) ([]model.Account, error) {
	return f.accounts, nil
}

func (f *fakeEntityStore) ListTransactions(_ context.Context, _ string, limit int) ([]model.Transaction, error) {
	if limit > 0 && limit < len(f.transactions) {
		return f.transactions[:limit], nil
	}
	return f.transactions, nil
}

type fakeProviderClient struct{}

func (fakeProviderClient) FetchItem(context.Context, string) (driven.ProviderItem, error) {
	return driven.ProviderItem{ItemID: "item-1", InstitutionID: "ins-1"}, nil
}

func (fakeProviderClient) FetchInstitution(context.Context, string) (driven.ProviderInstitution, error) {
	return driven.ProviderInstitution{InstitutionID: "ins-1", Name: "Test Bank"}, nil
}

func (fakeProviderClient) FetchAccounts(context.Context, string) ([]driven.ProviderAccount, error) {
	return []driven.ProviderAccount{{AccountID: "acc-1", Name: "Checking"}}, nil
}

func (fakeProviderClient) FetchTransactions(context.Context, string, time.Time, time.Time) ([]driven.ProviderTransaction, error) {
	return nil, nil
}

func (fakeProviderClient) CreateLinkToken(context.Context, string) (string, error) {
	return "link-tok", nil
}

func (fakeProviderClient) ExchangePublicToken(context.Context, string) (string, error) {
	return "access-tok", nil
}

// newTestServer wires a full handler over fakes, with the sync loop running.
func newTestServer(t *testing.T, entities *fakeEntityStore) (*httptest.Server, *application.Vault) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	vault := application.NewVault(newFakeCredentialStore(), fakeUserStore{}, key)
	provider := fakeProviderClient{}
	syncSvc := application.NewSyncService(vault, provider, entities, model.InstitutionPlaid, "user-1", time.Hour, 6)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go syncSvc.Start(ctx)

	h := httphandler.NewHandler(entities, vault, syncSvc, provider, "user-1", slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, h)

	server := httptest.NewServer(httphandler.ApplyMiddleware(mux, slog.Default()))
	t.Cleanup(server.Close)
	return server, vault
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t, &fakeEntityStore{})

	resp, err := http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleListAccounts(t *testing.T) {
	entities := &fakeEntityStore{accounts: []model.Account{
		{ExternalID: "acc-1", Name: "Checking", Currency: "USD", InstitutionExternalID: "ins-1"},
	}}
	server, _ := newTestServer(t, entities)

	resp, err := http.Get(server.URL + "/api/v1/accounts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accounts []httphandler.AccountResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ExternalID)
	assert.Equal(t, "ins-1", accounts[0].Institution)
}

func TestHandleListTransactions_Limit(t *testing.T) {
	entities := &fakeEntityStore{transactions: []model.Transaction{
		{ExternalID: "txn-1", AccountExternalID: "acc-1", Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("1.50")},
		{ExternalID: "txn-2", AccountExternalID: "acc-1", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("2.50")},
	}}
	server, _ := newTestServer(t, entities)

	resp, err := http.Get(server.URL + "/api/v1/transactions?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var txns []httphandler.TransactionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txns))
	require.Len(t, txns, 1)
	assert.Equal(t, "1.5", txns[0].Amount)
	assert.Equal(t, "2026-02-01", txns[0].Date)
}

func TestHandleListTransactions_BadLimit(t *testing.T) {
	server, _ := newTestServer(t, &fakeEntityStore{})

	resp, err := http.Get(server.URL + "/api/v1/transactions?limit=banana")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleExchangeToken_StoresCredential(t *testing.T) {
	server, vault := newTestServer(t, &fakeEntityStore{})

	resp, err := http.Post(server.URL+"/api/v1/link/exchange", "application/json",
		strings.NewReader(`{"public_token":"public-tok"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	secret, found, err := vault.Retrieve(context.Background(), "user-1", model.InstitutionPlaid)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "access-tok", secret)
}

func TestHandleExchangeToken_MissingToken(t *testing.T) {
	server, _ := newTestServer(t, &fakeEntityStore{})

	resp, err := http.Post(server.URL+"/api/v1/link/exchange", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleDeleteCredential(t *testing.T) {
	server, vault := newTestServer(t, &fakeEntityStore{})

	_, err := vault.Store(context.Background(), "user-1", model.InstitutionPlaid, "tok-A")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/credentials/plaid", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second delete finds nothing.
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestHandleDeleteCredential_UnknownInstitution(t *testing.T) {
	server, _ := newTestServer(t, &fakeEntityStore{})

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/credentials/gringotts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleSync_ReturnsSummary(t *testing.T) {
	server, vault := newTestServer(t, &fakeEntityStore{})

	_, err := vault.Store(context.Background(), "user-1", model.InstitutionPlaid, "tok-A")
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/api/v1/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary model.SyncSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Accounts.Success[model.KindInstitutions])
}
