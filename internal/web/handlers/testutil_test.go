package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/biogate/internal/account"
	"github.com/kozaktomas/biogate/internal/biometric"
	"github.com/kozaktomas/biogate/internal/config"
	"github.com/kozaktomas/biogate/internal/facematch"
	"github.com/kozaktomas/biogate/internal/logging"
	"github.com/kozaktomas/biogate/internal/login"
	"github.com/kozaktomas/biogate/internal/speech"
	"github.com/kozaktomas/biogate/internal/web/middleware"
)

const testPhrase = "hello this is a biometric authentication demo test"

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Audio:  config.AudioConfig{AuthURL: "http://localhost:5000", Threshold: 0.5},
		Speech: config.SpeechConfig{Provider: speech.ProviderBrowser},
	}
}

// stubDetector maps image content to descriptors. Unknown images have no face.
type stubDetector map[string]facematch.Descriptor

func (d stubDetector) DetectDescriptor(ctx context.Context, image []byte) (facematch.Descriptor, error) {
	if desc, ok := d[string(image)]; ok {
		return desc, nil
	}
	return nil, facematch.ErrNoFace
}

// stubAudio returns a fixed similarity.
type stubAudio struct {
	score float64
}

func (a stubAudio) Match(ctx context.Context, clip []byte) biometric.MatchResult {
	if len(clip) == 0 {
		return biometric.Failed(0, biometric.FailureDevicePermission, "No audio data")
	}
	return biometric.MatchResult{Matched: a.score > 0.5, Score: a.score}
}

// testEnv bundles a login service backed by a temporary account directory.
type testEnv struct {
	store    *account.FileStore
	service  *login.Service
	sessions *middleware.SessionManager
}

// newTestEnv enrolls alice (reference "alice-ref") and bob (picture without a face).
func newTestEnv(t *testing.T, audioScore float64) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := account.NewFileStore(t.TempDir())
	if err := store.Enroll(ctx, account.Account{ID: "alice", Name: "Alice", Picture: "alice.jpg"}, []byte("alice-ref")); err != nil {
		t.Fatalf("enroll alice: %v", err)
	}
	if err := store.Enroll(ctx, account.Account{ID: "bob", Name: "Bob", Picture: "bob.jpg"}, []byte("landscape")); err != nil {
		t.Fatalf("enroll bob: %v", err)
	}

	phrases, err := speech.NewPhraseSet([]string{testPhrase})
	if err != nil {
		t.Fatalf("phrase set: %v", err)
	}

	service, err := login.NewService(login.Dependencies{
		Accounts: store,
		Detector: stubDetector{
			"alice-ref":  {0, 0, 0},
			"alice-live": {0.1, 0.1, 0},
			"stranger":   {3, 3, 3},
		},
		Audio:   stubAudio{score: audioScore},
		Phrases: phrases,
		Gallery: facematch.NewGallery(0.6),
		Logger:  logging.Discard(),
	}, login.Options{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(service.Shutdown)

	sm := middleware.NewSessionManager("test-secret", false, nil, nil)
	t.Cleanup(sm.Stop)

	return &testEnv{store: store, service: service, sessions: sm}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a multipart request with the given files and fields.
func multipartRequest(t *testing.T, method, path string, files map[string][]byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile(name, name+".bin")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(data)
	}
	for name, value := range fields {
		writer.WriteField(name, value)
	}
	writer.Close()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
