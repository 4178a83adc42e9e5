// Package httphandler exposes the JSON API over the application services.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dkendall/ledgerlink/internal/application"
	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// Handler serves the JSON API: sync triggering, entity listings, and the
// provider link flow. The browser dashboard is a separate consumer of this
// surface.
type Handler struct {
	entities driven.EntityStore
	vault    *application.Vault
	sync     *application.SyncService
	provider driven.ProviderClient
	userID   string
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	entities driven.EntityStore,
	vault *application.Vault,
	sync *application.SyncService,
	provider driven.ProviderClient,
	userID string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		entities: entities,
		vault:    vault,
		sync:     sync,
		provider: provider,
		userID:   userID,
		logger:   logger,
	}
}

// RegisterAPIRoutes registers all API routes on the given mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.handleHealth)
	mux.HandleFunc("POST /api/v1/sync", h.handleSync)
	mux.HandleFunc("GET /api/v1/accounts", h.handleListAccounts)
	mux.HandleFunc("GET /api/v1/transactions", h.handleListTransactions)
	mux.HandleFunc("POST /api/v1/link/token", h.handleCreateLinkToken)
	mux.HandleFunc("POST /api/v1/link/exchange", h.handleExchangeToken)
	mux.HandleFunc("DELETE /api/v1/credentials/{institution}", h.handleDeleteCredential)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSync triggers a full sync outside the schedule and returns its
// summary. Sync failures are reported inside the summary, not as HTTP
// errors.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sync.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "sync unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.entities.ListAccounts(r.Context(), h.userID)
	if err != nil {
		h.logger.Error("list accounts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	txns, err := h.entities.ListTransactions(r.Context(), h.userID, limit)
	if err != nil {
		h.logger.Error("list transactions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	resp := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.provider.CreateLinkToken(r.Context(), h.userID)
	if err != nil {
		h.logger.Error("create link token failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to create link token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

// handleExchangeToken completes the link flow: it swaps the public token
// for an access token and stores it in the vault.
func (h *Handler) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PublicToken == "" {
		writeError(w, http.StatusBadRequest, "public_token is required")
		return
	}

	accessToken, err := h.provider.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	cred, err := h.vault.Store(r.Context(), h.userID, model.InstitutionPlaid, accessToken)
	if err != nil {
		h.logger.Error("store credential failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"credential_id": cred.ID})
}

func (h *Handler) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	tag := model.InstitutionTag(r.PathValue("institution"))

	removed, err := h.vault.Delete(r.Context(), h.userID, tag)
	if err != nil {
		if errors.Is(err, driven.ErrInvalidInstitution) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("delete credential failed", "institution", tag, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no credential stored for "+tag.String())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
