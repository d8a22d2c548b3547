package handlers

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/biogate/internal/biometric"
	"github.com/kozaktomas/biogate/internal/logging"
	"github.com/kozaktomas/biogate/internal/login"
)

func newAttemptsHandler(env *testEnv) *AttemptsHandler {
	return NewAttemptsHandler(env.service, env.sessions, nil, logging.Discard())
}

func startAttempt(t *testing.T, handler *AttemptsHandler, accountID string) login.View {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login/attempts", strings.NewReader(`{"account_id":"`+accountID+`"}`))
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	var view login.View
	parseJSONResponse(t, recorder, &view)
	return view
}

func captureAttempt(t *testing.T, handler *AttemptsHandler, id string, files map[string][]byte, transcript string) *httptest.ResponseRecorder {
	t.Helper()
	fields := map[string]string{}
	if transcript != "" {
		fields["transcript"] = transcript
	}
	req := multipartRequest(t, http.MethodPost, "/api/v1/login/attempts/"+id+"/capture", files, fields)
	req = requestWithChiParams(req, map[string]string{"id": id})
	recorder := httptest.NewRecorder()
	handler.Capture(recorder, req)
	return recorder
}

func TestAttemptsHandler_Start(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)

	view := startAttempt(t, handler, "alice")

	if view.ID == "" {
		t.Error("attempt ID is empty")
	}
	if view.State != login.StateAwaitingCapture {
		t.Errorf("State = %s, want %s", view.State, login.StateAwaitingCapture)
	}
	if view.Phrase != testPhrase {
		t.Errorf("Phrase = %q", view.Phrase)
	}
}

func TestAttemptsHandler_Start_Errors(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing account", `{}`, http.StatusBadRequest},
		{"unknown account", `{"account_id":"carol"}`, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/login/attempts", strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()
			handler.Start(recorder, req)
			assertStatusCode(t, recorder, tc.wantStatus)
		})
	}
}

func TestAttemptsHandler_Start_ReferenceWithoutFace(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)

	view := startAttempt(t, handler, "bob")

	if view.State != login.StateResolved {
		t.Fatalf("State = %s, want resolved", view.State)
	}
	if view.Outcome == nil || view.Outcome.Success {
		t.Fatalf("expected failed outcome, got %+v", view.Outcome)
	}
	if view.Outcome.Face.Failure != biometric.FailureNoFaceReference {
		t.Errorf("Face.Failure = %s", view.Outcome.Face.Failure)
	}
}

func TestAttemptsHandler_Capture_Success(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)
	view := startAttempt(t, handler, "alice")

	recorder := captureAttempt(t, handler, view.ID, map[string][]byte{
		"frame": []byte("alice-live"),
		"audio": []byte("RIFF"),
	}, "Hello This Is A Biometric Authentication Demo Test")

	assertStatusCode(t, recorder, http.StatusOK)

	var resp CaptureResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Outcome == nil || !resp.Outcome.Success {
		t.Fatalf("expected success, got %+v", resp.Outcome)
	}
	if resp.Outcome.Status != login.StatusSuccess {
		t.Errorf("Status = %s", resp.Outcome.Status)
	}
	if !resp.Outcome.Speech.Matched {
		t.Error("transcript should confirm the phrase")
	}
	if resp.Redirect != "/record_voice" {
		t.Errorf("Redirect = %q", resp.Redirect)
	}

	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected session cookie, got %d cookies", len(cookies))
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	session := env.sessions.GetSessionFromRequest(req)
	if session == nil || session.AccountID != "alice" {
		t.Errorf("session not created for alice: %+v", session)
	}
}

func TestAttemptsHandler_Capture_Failure(t *testing.T) {
	tests := []struct {
		name       string
		audioScore float64
		files      map[string][]byte
		wantFace   bool
		wantAudio  bool
	}{
		{"face mismatch", 0.9, map[string][]byte{"frame": []byte("stranger"), "audio": []byte("RIFF")}, false, true},
		{"audio at threshold", 0.5, map[string][]byte{"frame": []byte("alice-live"), "audio": []byte("RIFF")}, true, false},
		{"no face in frame", 0.9, map[string][]byte{"frame": []byte("wall"), "audio": []byte("RIFF")}, false, true},
		{"camera missing", 0.9, map[string][]byte{"audio": []byte("RIFF")}, false, true},
		{"microphone missing", 0.9, map[string][]byte{"frame": []byte("alice-live")}, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.audioScore)
			handler := newAttemptsHandler(env)
			view := startAttempt(t, handler, "alice")

			recorder := captureAttempt(t, handler, view.ID, tc.files, testPhrase)
			assertStatusCode(t, recorder, http.StatusOK)

			var resp CaptureResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Outcome == nil {
				t.Fatal("missing outcome")
			}
			if resp.Outcome.Success {
				t.Error("expected failure")
			}
			if resp.Outcome.Status != login.StatusFailure {
				t.Errorf("Status = %s, want FAILURE", resp.Outcome.Status)
			}
			if resp.Outcome.Face.Matched != tc.wantFace {
				t.Errorf("Face.Matched = %v, want %v", resp.Outcome.Face.Matched, tc.wantFace)
			}
			if resp.Outcome.Audio.Matched != tc.wantAudio {
				t.Errorf("Audio.Matched = %v, want %v", resp.Outcome.Audio.Matched, tc.wantAudio)
			}
			if len(recorder.Result().Cookies()) != 0 {
				t.Error("failed login must not set a session cookie")
			}
		})
	}
}

func TestAttemptsHandler_Capture_Twice(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)
	view := startAttempt(t, handler, "alice")

	files := map[string][]byte{"frame": []byte("alice-live"), "audio": []byte("RIFF")}
	assertStatusCode(t, captureAttempt(t, handler, view.ID, files, ""), http.StatusOK)
	assertStatusCode(t, captureAttempt(t, handler, view.ID, files, ""), http.StatusConflict)
}

func TestAttemptsHandler_Capture_UnknownAttempt(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)

	recorder := captureAttempt(t, handler, "nope", map[string][]byte{"frame": []byte("x")}, "")
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestAttemptsHandler_GetAndCancel(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)
	view := startAttempt(t, handler, "alice")

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": view.ID})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	req = requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": view.ID})
	recorder = httptest.NewRecorder()
	handler.Cancel(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var cancelled login.View
	parseJSONResponse(t, recorder, &cancelled)
	if cancelled.State != login.StateResolved {
		t.Errorf("State = %s, want resolved", cancelled.State)
	}
	if cancelled.Outcome == nil || cancelled.Outcome.Success {
		t.Errorf("cancelled attempt must fail: %+v", cancelled.Outcome)
	}

	req = requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": "nope"})
	recorder = httptest.NewRecorder()
	handler.Cancel(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestAttemptsHandler_Supersede(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)

	first := startAttempt(t, handler, "alice")
	second := startAttempt(t, handler, "alice")

	if first.ID == second.ID {
		t.Fatal("expected a new attempt")
	}
	attempt, err := env.service.Get(first.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if attempt.State() != login.StateResolved {
		t.Errorf("superseded attempt state = %s, want resolved", attempt.State())
	}
}

func TestAttemptsHandler_Events(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)
	view := startAttempt(t, handler, "alice")

	router := chi.NewRouter()
	router.Get("/attempts/{id}/events", handler.Events)
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/attempts/"+view.ID+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %s", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	readEvent := func() string {
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				return name
			}
		}
		return ""
	}

	if got := readEvent(); got != "snapshot" {
		t.Fatalf("first event = %q, want snapshot", got)
	}

	go env.service.Cancel(view.ID)

	var seen []string
	for {
		name := readEvent()
		if name == "" {
			break
		}
		seen = append(seen, name)
	}
	if len(seen) == 0 || seen[len(seen)-1] != login.EventResolved {
		t.Errorf("expected stream to end with resolved, got %v", seen)
	}
}

func TestAttemptsHandler_Events_Resolved(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)
	view := startAttempt(t, handler, "bob")

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": view.ID})
	recorder := httptest.NewRecorder()
	handler.Events(recorder, req)

	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: snapshot\n") {
		t.Errorf("unexpected body %q", body)
	}
	if n := bytes.Count(recorder.Body.Bytes(), []byte("event: ")); n != 1 {
		t.Errorf("expected only the snapshot for a resolved attempt, got %d events", n)
	}
}

func TestAttemptsHandler_Events_NotFound(t *testing.T) {
	env := newTestEnv(t, 0.9)
	handler := newAttemptsHandler(env)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()
	handler.Events(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "attempt not found")
}
