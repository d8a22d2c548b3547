package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/biogate/internal/account"
)

// AccountsHandler serves the user-select list and reference pictures.
type AccountsHandler struct {
	store account.Store
	log   *slog.Logger
}

// NewAccountsHandler creates a new accounts handler
func NewAccountsHandler(store account.Store, log *slog.Logger) *AccountsHandler {
	return &AccountsHandler{store: store, log: log}
}

// AccountResponse is an account as shown on the user-select page.
type AccountResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url"`
}

func toAccountResponse(acc account.Account) AccountResponse {
	return AccountResponse{
		ID:         acc.ID,
		Name:       acc.Name,
		PictureURL: "/api/v1/accounts/" + acc.ID + "/picture",
	}
}

// List returns all enrolled accounts
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("failed to list accounts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	result := make([]AccountResponse, 0, len(accounts))
	for _, acc := range accounts {
		result = append(result, toAccountResponse(acc))
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns a single account
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errorStatus(err), "account not found")
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponse(*acc))
}

// Picture streams the account's reference picture
func (h *AccountsHandler) Picture(w http.ResponseWriter, r *http.Request) {
	acc, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errorStatus(err), "account not found")
		return
	}

	data, err := h.store.Picture(r.Context(), acc)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error("failed to read reference picture", "account", sanitizeForLog(acc.ID), "error", err)
		}
		respondError(w, status, "picture not available")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
