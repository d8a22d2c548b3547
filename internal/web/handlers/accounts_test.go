package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/biogate/internal/logging"
)

func TestAccountsHandler_List(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := NewAccountsHandler(env.store, logging.Discard())

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result []AccountResponse
	parseJSONResponse(t, recorder, &result)

	if len(result) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(result))
	}
	if result[0].ID != "alice" || result[0].Name != "Alice" {
		t.Errorf("unexpected first account: %+v", result[0])
	}
	if result[0].PictureURL != "/api/v1/accounts/alice/picture" {
		t.Errorf("PictureURL = %s", result[0].PictureURL)
	}
}

func TestAccountsHandler_Get(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := NewAccountsHandler(env.store, logging.Discard())

	t.Run("existing", func(t *testing.T) {
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/accounts/bob", nil), map[string]string{"id": "bob"})
		recorder := httptest.NewRecorder()
		handler.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		var result AccountResponse
		parseJSONResponse(t, recorder, &result)
		if result.Name != "Bob" {
			t.Errorf("Name = %s, want Bob", result.Name)
		}
	})

	t.Run("missing", func(t *testing.T) {
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/accounts/carol", nil), map[string]string{"id": "carol"})
		recorder := httptest.NewRecorder()
		handler.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusNotFound)
		assertJSONError(t, recorder, "account not found")
	})
}

func TestAccountsHandler_Picture(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := NewAccountsHandler(env.store, logging.Discard())

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/accounts/alice/picture", nil), map[string]string{"id": "alice"})
	recorder := httptest.NewRecorder()
	handler.Picture(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if recorder.Body.String() != "alice-ref" {
		t.Errorf("unexpected picture body %q", recorder.Body.String())
	}
}
