package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/biogate/internal/web/middleware"
)

func newTestSessionManager(t *testing.T) *middleware.SessionManager {
	t.Helper()
	sm := middleware.NewSessionManager("test-secret", false, nil, nil)
	t.Cleanup(sm.Stop)
	return sm
}

func TestAuthHandler_Status_Unauthenticated(t *testing.T) {
	handler := NewAuthHandler(newTestSessionManager(t))

	recorder := httptest.NewRecorder()
	handler.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result StatusResponse
	parseJSONResponse(t, recorder, &result)
	if result.Authenticated {
		t.Error("expected authenticated=false without a session")
	}
}

func TestAuthHandler_Status_Authenticated(t *testing.T) {
	sm := newTestSessionManager(t)
	handler := NewAuthHandler(sm)
	session, _ := sm.CreateSession(context.Background(), "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	var result StatusResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Authenticated {
		t.Error("expected authenticated=true")
	}
	if result.AccountID != "alice" {
		t.Errorf("AccountID = %s, want alice", result.AccountID)
	}
	if result.ExpiresAt == "" {
		t.Error("expected expires_at")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	sm := newTestSessionManager(t)
	handler := NewAuthHandler(sm)
	session, _ := sm.CreateSession(context.Background(), "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	recorder := httptest.NewRecorder()
	handler.Logout(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if sm.GetSession(context.Background(), session.ID) != nil {
		t.Error("session should be deleted after logout")
	}

	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected an expiring session cookie, got %+v", cookies)
	}
}

func TestAuthHandler_Logout_WithoutSession(t *testing.T) {
	handler := NewAuthHandler(newTestSessionManager(t))

	recorder := httptest.NewRecorder()
	handler.Logout(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	assertStatusCode(t, recorder, http.StatusOK)
}
