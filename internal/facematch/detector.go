package facematch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultEmbeddingURL = "http://localhost:8000"

// ErrImageDecode wraps frames that could not be decoded before detection.
var ErrImageDecode = errors.New("image could not be decoded")

// Detector extracts a single face descriptor from an image.
// Implementations return ErrNoFace when the image contains no face.
type Detector interface {
	DetectDescriptor(ctx context.Context, image []byte) (Descriptor, error)
}

// Detection is one face found by the embedding server.
type Detection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// detectionResponse is the JSON body returned by POST /embed/face.
type detectionResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []Detection `json:"faces"`
	Model      string      `json:"model"`
}

// EmbeddingDetector detects faces using an InsightFace-style embedding server.
type EmbeddingDetector struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
}

// NewEmbeddingDetector creates a detector talking to the embedding server at baseURL.
func NewEmbeddingDetector(baseURL string, maxImageSize int) *EmbeddingDetector {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &EmbeddingDetector{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: maxImageSize,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// postImage posts a JPEG image as multipart field "file" to the given endpoint.
func (d *EmbeddingDetector) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req) //nolint:gosec // URL from trusted server config
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Detect returns every face the embedding server finds in the image.
func (d *EmbeddingDetector) Detect(ctx context.Context, imageData []byte) ([]Detection, error) {
	normalized, err := NormalizeImage(imageData, d.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}

	body, err := d.postImage(ctx, "/embed/face", normalized)
	if err != nil {
		return nil, err
	}

	var resp detectionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return resp.Faces, nil
}

// DetectDescriptor returns the descriptor of the highest scoring face.
func (d *EmbeddingDetector) DetectDescriptor(ctx context.Context, imageData []byte) (Descriptor, error) {
	faces, err := d.Detect(ctx, imageData)
	if err != nil {
		return nil, err
	}
	best := bestDetection(faces)
	if best == nil {
		return nil, ErrNoFace
	}
	return Descriptor(best.Embedding), nil
}

// bestDetection picks the detection with the highest score that carries an embedding.
func bestDetection(faces []Detection) *Detection {
	var best *Detection
	for i := range faces {
		if len(faces[i].Embedding) == 0 {
			continue
		}
		if best == nil || faces[i].DetScore > best.DetScore {
			best = &faces[i]
		}
	}
	return best
}
