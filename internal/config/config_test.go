package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultThresholds(t *testing.T) {
	t.Setenv("FACE_DISTANCE_THRESHOLD", "")
	t.Setenv("AUDIO_SIMILARITY_THRESHOLD", "")

	cfg := Load()

	if cfg.Face.Threshold != 0.6 {
		t.Errorf("expected default face threshold 0.6, got %f", cfg.Face.Threshold)
	}

	if cfg.Audio.Threshold != 0.5 {
		t.Errorf("expected default audio threshold 0.5, got %f", cfg.Audio.Threshold)
	}
}

func TestLoad_CustomThresholds(t *testing.T) {
	t.Setenv("FACE_DISTANCE_THRESHOLD", "0.45")
	t.Setenv("AUDIO_SIMILARITY_THRESHOLD", "0.7")

	cfg := Load()

	if cfg.Face.Threshold != 0.45 {
		t.Errorf("expected face threshold 0.45, got %f", cfg.Face.Threshold)
	}

	if cfg.Audio.Threshold != 0.7 {
		t.Errorf("expected audio threshold 0.7, got %f", cfg.Audio.Threshold)
	}
}

func TestLoad_InvalidThresholds(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"non-numeric", "abc"},
		{"negative", "-0.2"},
		{"zero", "0"},
		{"above one", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FACE_DISTANCE_THRESHOLD", tt.value)

			cfg := Load()

			// Should fall back to default
			if cfg.Face.Threshold != 0.6 {
				t.Errorf("expected default face threshold 0.6 for %q, got %f", tt.value, cfg.Face.Threshold)
			}
		})
	}
}

func TestLoad_RecordWindow(t *testing.T) {
	t.Setenv("AUDIO_RECORD_WINDOW", "")
	cfg := Load()
	if cfg.Audio.RecordWindow != 5*time.Second {
		t.Errorf("expected default record window 5s, got %s", cfg.Audio.RecordWindow)
	}

	t.Setenv("AUDIO_RECORD_WINDOW", "3s")
	cfg = Load()
	if cfg.Audio.RecordWindow != 3*time.Second {
		t.Errorf("expected record window 3s, got %s", cfg.Audio.RecordWindow)
	}

	t.Setenv("AUDIO_RECORD_WINDOW", "soon")
	cfg = Load()
	if cfg.Audio.RecordWindow != 5*time.Second {
		t.Errorf("expected default record window for invalid input, got %s", cfg.Audio.RecordWindow)
	}
}

func TestLoad_PhrasesLoaded(t *testing.T) {
	cfg := Load()

	// Verify phrases were loaded from embedded YAML
	if len(cfg.Speech.Phrases) != 1 {
		t.Fatalf("expected 1 phrase from embedded YAML, got %d", len(cfg.Speech.Phrases))
	}

	if cfg.Speech.Phrases[0] != "hello this is a biometric authentication demo test" {
		t.Errorf("unexpected phrase %q", cfg.Speech.Phrases[0])
	}
}

func TestLoad_WebConfig(t *testing.T) {
	t.Setenv("WEB_HOST", "127.0.0.1")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg := Load()

	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("expected host '127.0.0.1', got '%s'", cfg.Web.Host)
	}

	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}

	if len(cfg.Web.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 allowed origins, got %v", cfg.Web.AllowedOrigins)
	}

	if cfg.Web.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("expected second origin 'https://b.example.com', got '%s'", cfg.Web.AllowedOrigins[1])
	}
}

func TestLoad_SpeechConfig(t *testing.T) {
	t.Setenv("SPEECH_PROVIDER", "openai")
	t.Setenv("SPEECH_REQUIRED", "true")

	cfg := Load()

	if cfg.Speech.Provider != "openai" {
		t.Errorf("expected provider 'openai', got '%s'", cfg.Speech.Provider)
	}

	if !cfg.Speech.Require {
		t.Error("expected speech to be required")
	}
}

func TestLoad_DefaultSpeechProvider(t *testing.T) {
	t.Setenv("SPEECH_PROVIDER", "")
	t.Setenv("SPEECH_REQUIRED", "")

	cfg := Load()

	if cfg.Speech.Provider != "browser" {
		t.Errorf("expected default provider 'browser', got '%s'", cfg.Speech.Provider)
	}

	if cfg.Speech.Require {
		t.Error("expected speech to be informational by default")
	}
}

func TestSpeechProviderAvailable(t *testing.T) {
	cfg := &Config{
		OpenAI: OpenAIConfig{Token: "sk-test"},
	}

	tests := []struct {
		provider string
		expected bool
	}{
		{"browser", true},
		{"openai", true},
		{"gemini", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			if got := cfg.SpeechProviderAvailable(tt.provider); got != tt.expected {
				t.Errorf("SpeechProviderAvailable(%q) = %v, want %v", tt.provider, got, tt.expected)
			}
		})
	}
}
