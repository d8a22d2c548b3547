package handlers

import (
	"net/http"

	"github.com/kozaktomas/biogate/internal/config"
	"github.com/kozaktomas/biogate/internal/login"
	"github.com/kozaktomas/biogate/internal/speech"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	opts   login.Options
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, opts login.Options) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		opts:   opts,
	}
}

// ConfigResponse is what the capture page needs to know before recording.
type ConfigResponse struct {
	FaceThreshold   float64        `json:"face_threshold"`
	AudioThreshold  float64        `json:"audio_threshold"`
	RecordWindowMs  int64          `json:"record_window_ms"`
	RequireSpeech   bool           `json:"require_speech"`
	SpeechProvider  string         `json:"speech_provider"`
	AudioServiceURL string         `json:"audio_service_url"`
	Providers       []ProviderInfo `json:"providers"`
}

// ProviderInfo represents information about a transcription provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	var providers []ProviderInfo
	for _, name := range []string{speech.ProviderBrowser, speech.ProviderOpenAI, speech.ProviderGemini} {
		providers = append(providers, ProviderInfo{
			Name:      name,
			Available: h.config.SpeechProviderAvailable(name),
		})
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		FaceThreshold:   h.opts.FaceThreshold,
		AudioThreshold:  h.config.Audio.Threshold,
		RecordWindowMs:  h.opts.RecordWindow.Milliseconds(),
		RequireSpeech:   h.opts.RequireSpeech,
		SpeechProvider:  h.config.Speech.Provider,
		AudioServiceURL: h.config.Audio.AuthURL,
		Providers:       providers,
	})
}
