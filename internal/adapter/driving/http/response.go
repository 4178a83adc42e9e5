package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/dkendall/ledgerlink/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it with the given status code.
// If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AccountResponse is the JSON representation of an account.
type AccountResponse struct {
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	Mask        string `json:"mask"`
	Currency    string `json:"currency"`
	Institution string `json:"institution"`
}

func toAccountResponse(a model.Account) AccountResponse {
	return AccountResponse{
		ExternalID:  a.ExternalID,
		Name:        a.Name,
		Type:        a.Type,
		Subtype:     a.Subtype,
		Mask:        a.Mask,
		Currency:    a.Currency,
		Institution: a.InstitutionExternalID,
	}
}

// TransactionResponse is the JSON representation of a transaction. Amount
// is a decimal string to keep exactness on the wire.
type TransactionResponse struct {
	ExternalID  string `json:"external_id"`
	Account     string `json:"account"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Payee       string `json:"payee"`
	Description string `json:"description"`
}

func toTransactionResponse(t model.Transaction) TransactionResponse {
	return TransactionResponse{
		ExternalID:  t.ExternalID,
		Account:     t.AccountExternalID,
		Date:        t.Date.Format("2006-01-02"),
		Amount:      t.Amount.String(),
		Payee:       t.Payee,
		Description: t.Description,
	}
}
