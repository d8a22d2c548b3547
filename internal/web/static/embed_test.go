package static

import (
	"io"
	"testing"
)

func TestOpen(t *testing.T) {
	if !Built() {
		t.Fatal("expected embedded pages")
	}

	f, err := Open("index.html")
	if err != nil {
		t.Fatalf("Open(index.html) error = %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		t.Errorf("index.html empty or unreadable: %v", err)
	}

	if _, err := Open("missing.html"); err == nil {
		t.Error("expected error for missing file")
	}
}
