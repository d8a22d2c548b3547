package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/biogate/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var phrasesYAML []byte

type Config struct {
	Web      WebConfig
	Face     FaceConfig
	Audio    AudioConfig
	Speech   SpeechConfig
	Accounts AccountsConfig
	Database DatabaseConfig
	Audit    AuditConfig
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	Log      LogConfig
}

type WebConfig struct {
	Host           string
	Port           int
	SessionSecret  string
	AllowedOrigins []string
	SecureCookies  bool
}

type FaceConfig struct {
	EmbeddingURL string  // face embedding server, defaults to http://localhost:8000
	Threshold    float64 // maximum descriptor distance, exclusive
	MaxImageSize int     // frames are downscaled to fit this before detection
}

type AudioConfig struct {
	AuthURL      string  // audio-auth service base URL, defaults to http://localhost:5000
	Threshold    float64 // minimum cosine similarity, exclusive
	RecordWindow time.Duration
}

type SpeechConfig struct {
	Provider string   // "browser" (transcript sent by client), "openai" or "gemini"
	Require  bool     // when true the spoken phrase gates the login outcome
	Phrases  []string `yaml:"phrases"`
}

type AccountsConfig struct {
	Dir string // directory holding accounts.yaml and the reference pictures
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (optional)
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type AuditConfig struct {
	MariaDBDSN string // MariaDB DSN for the attempt audit log (optional)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in the range (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadPhrases() []string {
	var speech SpeechConfig
	if err := yaml.Unmarshal(phrasesYAML, &speech); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded phrases.yaml: " + err.Error())
	}
	return speech.Phrases
}

func Load() *Config {
	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			SessionSecret:  os.Getenv("WEB_SESSION_SECRET"),
			AllowedOrigins: splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
			SecureCookies:  envBool("WEB_SECURE_COOKIES", false),
		},
		Face: FaceConfig{
			EmbeddingURL: os.Getenv("FACE_EMBEDDING_URL"),
			Threshold:    envFloat("FACE_DISTANCE_THRESHOLD", constants.FaceDistanceThreshold),
			MaxImageSize: envInt("FACE_MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Audio: AudioConfig{
			AuthURL:      envString("AUDIO_AUTH_URL", "http://localhost:5000"),
			Threshold:    envFloat("AUDIO_SIMILARITY_THRESHOLD", constants.AudioSimilarityThreshold),
			RecordWindow: envDuration("AUDIO_RECORD_WINDOW", constants.RecordWindow),
		},
		Speech: SpeechConfig{
			Provider: envString("SPEECH_PROVIDER", "browser"),
			Require:  envBool("SPEECH_REQUIRED", false),
			Phrases:  loadPhrases(),
		},
		Accounts: AccountsConfig{
			Dir: envString("ACCOUNTS_DIR", "temp-accounts"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Audit: AuditConfig{
			MariaDBDSN: os.Getenv("AUDIT_MARIADB_DSN"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}
}

// SpeechProviderAvailable reports whether the named transcription provider
// has the credentials it needs.
func (c *Config) SpeechProviderAvailable(name string) bool {
	switch name {
	case "browser":
		return true
	case "openai":
		return c.OpenAI.Token != ""
	case "gemini":
		return c.Gemini.APIKey != ""
	}
	return false
}
