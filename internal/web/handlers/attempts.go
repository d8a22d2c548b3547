package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/biogate/internal/capture"
	"github.com/kozaktomas/biogate/internal/constants"
	"github.com/kozaktomas/biogate/internal/guard"
	"github.com/kozaktomas/biogate/internal/login"
	"github.com/kozaktomas/biogate/internal/speech"
	"github.com/kozaktomas/biogate/internal/web/middleware"
)

// AttemptsHandler drives login attempts over HTTP. The browser captures the
// camera frame, the audio clip and optionally the transcript, then uploads
// them in one request.
type AttemptsHandler struct {
	service        *login.Service
	sessionManager *middleware.SessionManager
	transcriber    speech.Transcriber // nil when the browser transcribes
	log            *slog.Logger
}

// NewAttemptsHandler creates a new attempts handler
func NewAttemptsHandler(service *login.Service, sm *middleware.SessionManager, transcriber speech.Transcriber, log *slog.Logger) *AttemptsHandler {
	return &AttemptsHandler{
		service:        service,
		sessionManager: sm,
		transcriber:    transcriber,
		log:            log,
	}
}

type startRequest struct {
	AccountID string `json:"account_id"`
}

// CaptureResponse is returned once an attempt resolves.
type CaptureResponse struct {
	login.View
	Redirect string `json:"redirect,omitempty"`
}

// Start begins a login attempt and loads the account's reference face
func (h *AttemptsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.AccountID == "" {
		respondError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	attempt, err := h.service.Begin(r.Context(), req.AccountID)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error("failed to start login attempt", "account", sanitizeForLog(req.AccountID), "error", err)
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, attempt.View())
}

// Capture uploads the captured media and runs the attempt to its outcome.
// A successful login sets the session cookie.
func (h *AttemptsHandler) Capture(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "id")
	attempt, err := h.service.Get(attemptID)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	frame, err := readFormFile(r.MultipartForm, "frame")
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read frame")
		return
	}
	clip, err := readFormFile(r.MultipartForm, "audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	media := &capture.UploadedMedia{
		Frame:       frame,
		Audio:       clip,
		Transcript:  r.FormValue("transcript"),
		Transcriber: h.transcriber,
	}

	outcome, err := h.service.Capture(r.Context(), attempt.ID, media)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	resp := CaptureResponse{View: attempt.View()}
	if outcome != nil && outcome.Success {
		session, err := h.sessionManager.CreateSession(r.Context(), attempt.AccountID)
		if err != nil {
			h.log.Error("failed to create session", "account", sanitizeForLog(attempt.AccountID), "error", err)
			respondError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
		h.sessionManager.SetSessionCookie(w, session)
		resp.Redirect = guard.ProtectedPath
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get returns the current view of an attempt
func (h *AttemptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, attempt.View())
}

// Cancel resolves an in-flight attempt as cancelled and releases its devices
func (h *AttemptsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "id")
	if _, err := h.service.Cancel(attemptID); err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	attempt, err := h.service.Get(attemptID)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, attempt.View())
}

// Events streams the attempt's state transitions via SSE
func (h *AttemptsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamAttemptEvents(w, r, func(id string) *login.Attempt {
		attempt, err := h.service.Get(id)
		if err != nil {
			return nil
		}
		return attempt
	})
}

// readFormFile returns the content of the named upload, or nil when the
// client did not send it. A missing file becomes a device failure downstream.
func readFormFile(form *multipart.Form, name string) ([]byte, error) {
	if form == nil || len(form.File[name]) == 0 {
		return nil, nil
	}
	f, err := form.File[name][0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
