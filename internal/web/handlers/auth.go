package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/biogate/internal/web/middleware"
)

// AuthHandler handles session endpoints. Logging in happens through a
// successful login attempt, see AttemptsHandler.Capture.
type AuthHandler struct {
	sessionManager *middleware.SessionManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sm *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{
		sessionManager: sm,
	}
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session != nil {
		h.sessionManager.DeleteSession(r.Context(), session.ID)
	}

	h.sessionManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	AccountID     string `json:"account_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status reports whether the request carries a logged-in session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if !session.HasAccount() {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		AccountID:     session.AccountID,
		ExpiresAt:     session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
