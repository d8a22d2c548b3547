package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// Provider names accepted by NewTranscriber.
const (
	ProviderBrowser = "browser"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

const geminiModel = "gemini-2.5-flash"

const geminiPrompt = "Transcribe the speech in this recording. " +
	"Reply with the spoken words only, without punctuation or commentary."

// ErrNoTranscriber is returned when the browser provides transcripts and no
// server-side transcriber is configured.
var ErrNoTranscriber = errors.New("no server-side transcriber configured")

// Transcriber turns a recorded clip into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, clip []byte) (string, error)
}

// OpenAITranscriber uses the Whisper transcription endpoint.
type OpenAITranscriber struct {
	client *openai.Client
}

func NewOpenAITranscriber(apiKey string, opts ...option.RequestOption) *OpenAITranscriber {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAITranscriber{client: &client}
}

func (t *OpenAITranscriber) Name() string {
	return openai.AudioModelWhisper1
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, clip []byte) (string, error) {
	if len(clip) == 0 {
		return "", errors.New("audio clip is empty")
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(clip), "recording.wav", "audio/wav"),
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// GeminiTranscriber asks Gemini to transcribe inline audio.
type GeminiTranscriber struct {
	client *genai.Client
}

func NewGeminiTranscriber(ctx context.Context, apiKey string) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiTranscriber{client: client}, nil
}

func (t *GeminiTranscriber) Name() string {
	return geminiModel
}

func (t *GeminiTranscriber) Transcribe(ctx context.Context, clip []byte) (string, error) {
	if len(clip) == 0 {
		return "", errors.New("audio clip is empty")
	}
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: geminiPrompt},
				{InlineData: &genai.Blob{Data: clip, MIMEType: "audio/wav"}},
			},
		},
	}
	result, err := t.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}
	return strings.TrimSpace(result.Text()), nil
}

// NewTranscriber builds the server-side transcriber for a provider name.
// The browser provider returns ErrNoTranscriber: transcripts arrive with the capture.
func NewTranscriber(ctx context.Context, provider, openAIToken, geminiKey string) (Transcriber, error) {
	switch provider {
	case "", ProviderBrowser:
		return nil, ErrNoTranscriber
	case ProviderOpenAI:
		if openAIToken == "" {
			return nil, errors.New("OPENAI_TOKEN is required for the openai speech provider")
		}
		return NewOpenAITranscriber(openAIToken), nil
	case ProviderGemini:
		if geminiKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini speech provider")
		}
		return NewGeminiTranscriber(ctx, geminiKey)
	default:
		return nil, fmt.Errorf("unknown speech provider: %s", provider)
	}
}
