package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/biogate/internal/constants"
	"github.com/kozaktomas/biogate/internal/facematch"
	"github.com/kozaktomas/biogate/internal/login"
)

// FacesHandler answers 1:N face identification against enrolled accounts.
type FacesHandler struct {
	service *login.Service
	log     *slog.Logger
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(service *login.Service, log *slog.Logger) *FacesHandler {
	return &FacesHandler{service: service, log: log}
}

// IdentifyResponse is the closest enrolled account for a frame.
type IdentifyResponse struct {
	Matched   bool    `json:"matched"`
	AccountID string  `json:"account_id,omitempty"`
	Distance  float64 `json:"distance"`
}

// Identify finds the enrolled account whose reference face is closest to
// the uploaded frame.
func (h *FacesHandler) Identify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxPictureSize)
	if err := r.ParseMultipartForm(constants.MaxPictureSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	frame, err := readFormFile(r.MultipartForm, "frame")
	if err != nil || len(frame) == 0 {
		respondError(w, http.StatusBadRequest, "frame is required")
		return
	}

	best, err := h.service.Identify(r.Context(), frame)
	switch {
	case errors.Is(err, facematch.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, "no face detected")
		return
	case errors.Is(err, facematch.ErrImageDecode):
		respondError(w, http.StatusBadRequest, "invalid image")
		return
	case err != nil:
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error("face identification failed", "error", err)
		}
		respondError(w, status, err.Error())
		return
	}

	resp := IdentifyResponse{Matched: best.Resolved(), Distance: best.Distance}
	if resp.Matched {
		resp.AccountID = best.Label
	}
	respondJSON(w, http.StatusOK, resp)
}
