package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/biogate/internal/login"
)

// setupSSEConnection validates the request, finds the attempt, and sets up SSE headers.
// Returns the attempt, flusher, and true on success. On failure, writes an error response and returns zero values with false.
func setupSSEConnection(w http.ResponseWriter, r *http.Request, lookup func(string) *login.Attempt) (*login.Attempt, http.Flusher, bool) {
	attemptID := chi.URLParam(r, "id")
	if attemptID == "" {
		respondError(w, http.StatusBadRequest, "missing attempt ID")
		return nil, nil, false
	}

	attempt := lookup(attemptID)
	if attempt == nil {
		respondError(w, http.StatusNotFound, "attempt not found")
		return nil, nil, false
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return attempt, flusher, true
}

// streamAttemptEvents streams events from an attempt until it resolves, the
// client disconnects, or the event channel closes. The first event is a
// snapshot of the attempt.
func streamAttemptEvents(w http.ResponseWriter, r *http.Request, lookup func(string) *login.Attempt) {
	attempt, flusher, ok := setupSSEConnection(w, r, lookup)
	if !ok {
		return
	}

	eventCh := attempt.AddListener()
	defer attempt.RemoveListener(eventCh)

	view := attempt.View()
	sendSSEEvent(w, flusher, "snapshot", view)
	if view.State.Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if event.Type == login.EventResolved {
				return
			}
		}
	}
}

// sendSSEEvent writes a single SSE event with the given type and JSON-encoded data.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
