// Package audiomatch forwards recorded voice clips to the external
// audio-authentication service and scores its cosine similarity.
package audiomatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/biogate/internal/biometric"
	"github.com/kozaktomas/biogate/internal/constants"
)

const defaultAuthURL = "http://localhost:5000"

// ErrEmptyClip is returned when there is no audio to send.
var ErrEmptyClip = errors.New("audio clip is empty")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("audio auth error (status %d): %s", e.StatusCode, e.Body)
}

// authResponse is the JSON body returned by POST /start_audio_auth.
type authResponse struct {
	CosineSimilarity *float64 `json:"cosine_similarity"`
}

// Client talks to the audio-authentication service. Cookies set by the
// service are kept in a jar and sent back on later requests.
type Client struct {
	baseURL   string
	threshold float64
	client    *http.Client
}

// NewClient creates a client for the service at baseURL. Scores must be
// strictly greater than threshold to match.
func NewClient(baseURL string, threshold float64) *Client {
	if baseURL == "" {
		baseURL = defaultAuthURL
	}
	if threshold <= 0 {
		threshold = constants.AudioSimilarityThreshold
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		threshold: threshold,
		client:    &http.Client{Timeout: 30 * time.Second, Jar: jar},
	}
}

// BaseURL returns the service URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Threshold returns the similarity threshold.
func (c *Client) Threshold() float64 {
	return c.threshold
}

// Similarity uploads the clip and returns the cosine similarity reported by the service.
func (c *Client) Similarity(ctx context.Context, clip []byte) (float64, error) {
	if len(clip) == 0 {
		return 0, ErrEmptyClip
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="recording.wav"`)
	h.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(h)
	if err != nil {
		return 0, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(clip); err != nil {
		return 0, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/start_audio_auth", &buf)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req) //nolint:gosec // URL from trusted server config
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var ar authResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	if ar.CosineSimilarity == nil {
		return 0, errors.New("response has no cosine_similarity")
	}
	return *ar.CosineSimilarity, nil
}

// Match scores the clip. Errors never escape: they become a failed result
// with similarity 0. The service is not retried.
func (c *Client) Match(ctx context.Context, clip []byte) biometric.MatchResult {
	score, err := c.Similarity(ctx, clip)
	if err != nil {
		return failure(err)
	}
	if score > c.threshold {
		return biometric.MatchResult{Matched: true, Score: score}
	}
	return biometric.MatchResult{Matched: false, Score: score, Failure: biometric.FailureMismatch}
}

func failure(err error) biometric.MatchResult {
	var se *StatusError
	switch {
	case errors.Is(err, ErrEmptyClip):
		return biometric.Failed(0, biometric.FailureDevicePermission, "No audio data")
	case errors.Is(err, context.Canceled):
		return biometric.Failed(0, biometric.FailureCancelled, "Cancelled")
	case errors.As(err, &se):
		return biometric.Failed(0, biometric.FailureBadStatus, fmt.Sprintf("Error in audio processing (status %d)", se.StatusCode))
	default:
		return biometric.Failed(0, biometric.FailureNetwork, "Error in audio processing")
	}
}
