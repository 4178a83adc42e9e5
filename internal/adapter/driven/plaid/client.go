// Package plaid implements the ProviderClient port against the Plaid API.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProviderClient = (*Client)(nil)

// Environment selects which Plaid host the client talks to.
type Environment string

const (
	EnvSandbox     Environment = "sandbox"
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// BaseURL returns the API host for the environment. Unknown values fall
// back to sandbox, the safe default.
func (e Environment) BaseURL() string {
	switch e {
	case EnvDevelopment:
		return "https://development.plaid.com"
	case EnvProduction:
		return "https://production.plaid.com"
	default:
		return "https://sandbox.plaid.com"
	}
}

// transactionsPageSize is the max count Plaid allows per /transactions/get
// page.
const transactionsPageSize = 500

const dateLayout = "2006-01-02"

// Client implements the driven.ProviderClient port over Plaid's JSON API.
// Every endpoint is a POST carrying the client credentials in the body.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	secret       string
	countryCodes []string
}

// NewClient creates a Plaid API client for the given environment.
func NewClient(clientID, secret string, env Environment, countryCodes []string) *Client {
	if len(countryCodes) == 0 {
		countryCodes = []string{"US"}
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      env.BaseURL(),
		clientID:     clientID,
		secret:       secret,
		countryCodes: countryCodes,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// base URL. Intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, clientID, secret string) *Client {
	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		clientID:     clientID,
		secret:       secret,
		countryCodes: []string{"US"},
	}
}

// apiError is Plaid's error response body.
type apiError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("plaid: %s/%s: %s", e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// post sends body as JSON to path and decodes the response into out.
// Non-2xx responses are decoded into apiError.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.ErrorCode == "" {
			return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
		}
		return fmt.Errorf("%s: %w", path, &apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type itemResponse struct {
	Item struct {
		ItemID        string `json:"item_id"`
		InstitutionID string `json:"institution_id"`
	} `json:"item"`
}

// FetchItem retrieves the item metadata behind an access token, which
// carries the institution's external identifier.
func (c *Client) FetchItem(ctx context.Context, accessToken string) (driven.ProviderItem, error) {
	body := map[string]any{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": accessToken,
	}

	var resp itemResponse
	if err := c.post(ctx, "/item/get", body, &resp); err != nil {
		return driven.ProviderItem{}, err
	}

	return driven.ProviderItem{
		ItemID:        resp.Item.ItemID,
		InstitutionID: resp.Item.InstitutionID,
	}, nil
}

type institutionResponse struct {
	Institution struct {
		InstitutionID string `json:"institution_id"`
		Name          string `json:"name"`
		URL           string `json:"url"`
	} `json:"institution"`
}

// FetchInstitution retrieves institution metadata by external identifier.
func (c *Client) FetchInstitution(ctx context.Context, institutionID string) (driven.ProviderInstitution, error) {
	body := map[string]any{
		"client_id":      c.clientID,
		"secret":         c.secret,
		"institution_id": institutionID,
		"country_codes":  c.countryCodes,
		"options":        map[string]any{"include_optional_metadata": true},
	}

	var resp institutionResponse
	if err := c.post(ctx, "/institutions/get_by_id", body, &resp); err != nil {
		return driven.ProviderInstitution{}, err
	}

	return driven.ProviderInstitution{
		InstitutionID: resp.Institution.InstitutionID,
		Name:          resp.Institution.Name,
		URL:           resp.Institution.URL,
	}, nil
}

type accountJSON struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype"`
	Mask         string `json:"mask"`
	Balances     struct {
		ISOCurrencyCode string `json:"iso_currency_code"`
	} `json:"balances"`
}

type accountsResponse struct {
	Accounts []accountJSON `json:"accounts"`
}

// FetchAccounts retrieves all accounts behind an access token.
func (c *Client) FetchAccounts(ctx context.Context, accessToken string) ([]driven.ProviderAccount, error) {
	body := map[string]any{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": accessToken,
	}

	var resp accountsResponse
	if err := c.post(ctx, "/accounts/get", body, &resp); err != nil {
		return nil, err
	}

	accounts := make([]driven.ProviderAccount, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, mapAccount(a))
	}
	return accounts, nil
}

func mapAccount(a accountJSON) driven.ProviderAccount {
	return driven.ProviderAccount{
		AccountID:    a.AccountID,
		Name:         a.Name,
		OfficialName: a.OfficialName,
		Type:         a.Type,
		Subtype:      a.Subtype,
		Mask:         a.Mask,
		Balances: driven.ProviderAccountBalances{
			ISOCurrencyCode: a.Balances.ISOCurrencyCode,
		},
	}
}

type transactionJSON struct {
	TransactionID string      `json:"transaction_id"`
	AccountID     string      `json:"account_id"`
	Name          string      `json:"name"`
	MerchantName  string      `json:"merchant_name"`
	Amount        json.Number `json:"amount"`
	Date          string      `json:"date"`
	Pending       bool        `json:"pending"`
}

type transactionsResponse struct {
	Transactions      []transactionJSON `json:"transactions"`
	TotalTransactions int               `json:"total_transactions"`
}

// FetchTransactions retrieves all transactions in the inclusive [start, end]
// window, paging by offset until the reported total is reached. Amounts are
// decoded as json.Number so no float conversion happens here.
func (c *Client) FetchTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]driven.ProviderTransaction, error) {
	var all []driven.ProviderTransaction

	for {
		body := map[string]any{
			"client_id":    c.clientID,
			"secret":       c.secret,
			"access_token": accessToken,
			"start_date":   start.Format(dateLayout),
			"end_date":     end.Format(dateLayout),
			"options": map[string]any{
				"count":  transactionsPageSize,
				"offset": len(all),
			},
		}

		var resp transactionsResponse
		if err := c.post(ctx, "/transactions/get", body, &resp); err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", len(all), err)
		}

		for _, t := range resp.Transactions {
			all = append(all, driven.ProviderTransaction{
				TransactionID: t.TransactionID,
				AccountID:     t.AccountID,
				Name:          t.Name,
				MerchantName:  t.MerchantName,
				Amount:        t.Amount,
				Date:          t.Date,
				Pending:       t.Pending,
			})
		}

		if len(all) >= resp.TotalTransactions || len(resp.Transactions) == 0 {
			break
		}
	}

	if all == nil {
		all = []driven.ProviderTransaction{}
	}
	return all, nil
}

type linkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

// CreateLinkToken creates a link token for the browser link flow.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	body := map[string]any{
		"client_id":     c.clientID,
		"secret":        c.secret,
		"client_name":   "ledgerlink",
		"language":      "en",
		"country_codes": c.countryCodes,
		"user":          map[string]any{"client_user_id": userID},
		"products":      []string{"transactions"},
	}

	var resp linkTokenResponse
	if err := c.post(ctx, "/link/token/create", body, &resp); err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
}

// ExchangePublicToken swaps the public token produced by the link flow for
// the long-lived access token the vault stores.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	body := map[string]any{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"public_token": publicToken,
	}

	var resp exchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", body, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Tag returns the institution tag this client serves.
func (c *Client) Tag() model.InstitutionTag {
	return model.InstitutionPlaid
}
