package facematch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func setupEmbeddingServer(t *testing.T, status int, faces []Detection) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file field: %v", err)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte("boom"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"faces_count": len(faces),
			"faces":       faces,
			"model":       "buffalo_l",
		})
	}))
}

func TestEmbeddingDetector_PicksHighestScore(t *testing.T) {
	server := setupEmbeddingServer(t, http.StatusOK, []Detection{
		{FaceIndex: 0, Embedding: []float32{1, 0}, DetScore: 0.7},
		{FaceIndex: 1, Embedding: []float32{0, 1}, DetScore: 0.95},
	})
	defer server.Close()

	d := NewEmbeddingDetector(server.URL, 64)
	desc, err := d.DetectDescriptor(context.Background(), testPNG(t, 32, 32))
	if err != nil {
		t.Fatalf("DetectDescriptor() error = %v", err)
	}
	if len(desc) != 2 || desc[1] != 1 {
		t.Errorf("expected descriptor of the highest scoring face, got %v", desc)
	}
}

func TestEmbeddingDetector_NoFace(t *testing.T) {
	server := setupEmbeddingServer(t, http.StatusOK, nil)
	defer server.Close()

	d := NewEmbeddingDetector(server.URL, 64)
	_, err := d.DetectDescriptor(context.Background(), testPNG(t, 16, 16))
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestEmbeddingDetector_ServerError(t *testing.T) {
	server := setupEmbeddingServer(t, http.StatusInternalServerError, nil)
	defer server.Close()

	d := NewEmbeddingDetector(server.URL, 64)
	_, err := d.DetectDescriptor(context.Background(), testPNG(t, 16, 16))
	if err == nil {
		t.Fatal("expected error for server failure")
	}
	if errors.Is(err, ErrNoFace) {
		t.Error("server failure must not be reported as no face")
	}
}

func TestEmbeddingDetector_InvalidImage(t *testing.T) {
	d := NewEmbeddingDetector("http://127.0.0.1:1", 64)
	_, err := d.DetectDescriptor(context.Background(), []byte("not an image"))
	if !errors.Is(err, ErrImageDecode) {
		t.Errorf("expected ErrImageDecode, got %v", err)
	}
}

func TestBestDetection_SkipsEmptyEmbeddings(t *testing.T) {
	best := bestDetection([]Detection{
		{FaceIndex: 0, DetScore: 0.99},
		{FaceIndex: 1, Embedding: []float32{1}, DetScore: 0.5},
	})
	if best == nil || best.FaceIndex != 1 {
		t.Errorf("expected face 1, got %+v", best)
	}

	if bestDetection(nil) != nil {
		t.Error("expected nil for no detections")
	}
}
