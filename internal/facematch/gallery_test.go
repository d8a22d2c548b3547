package facematch

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestGallery_Identify(t *testing.T) {
	g := NewGallery(0.6)
	mustPut(t, g, "alice", Descriptor{0, 0, 1})
	mustPut(t, g, "bob", Descriptor{1, 0, 0})

	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}

	best := g.Identify(Descriptor{0.9, 0.1, 0})
	if best.Label != "bob" {
		t.Errorf("expected bob, got %q (distance %v)", best.Label, best.Distance)
	}

	best = g.Identify(Descriptor{0, 5, 0})
	if best.Label != UnknownLabel {
		t.Errorf("expected unknown for a distant face, got %q", best.Label)
	}
}

func TestGallery_PutReplaces(t *testing.T) {
	g := NewGallery(0.6)
	mustPut(t, g, "alice", Descriptor{0, 0, 1})
	mustPut(t, g, "alice", Descriptor{1, 0, 0})

	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}

	best := g.Identify(Descriptor{1, 0, 0})
	if best.Label != "alice" || best.Distance != 0 {
		t.Errorf("expected alice at distance 0, got %q at %v", best.Label, best.Distance)
	}
}

func TestGallery_RepeatedPuts(t *testing.T) {
	g := NewGallery(0.6)
	const accounts = 30

	for round := 0; round < 3; round++ {
		for i := 0; i < accounts; i++ {
			d := Descriptor{float32(i), 0, 0}
			if round == 2 && i%5 == 0 {
				d = Descriptor{float32(i), 0.1, 0}
			}
			mustPut(t, g, fmt.Sprintf("u%d", i), d)
		}
	}

	if g.Len() != accounts {
		t.Fatalf("Len() = %d, want %d", g.Len(), accounts)
	}
	for _, i := range []int{0, 7, 10, 29} {
		best := g.Identify(Descriptor{float32(i), 0, 0})
		want := fmt.Sprintf("u%d", i)
		if best.Label != want {
			t.Errorf("Identify(%d) = %q at %v, want %s", i, best.Label, best.Distance, want)
		}
	}
}

func TestGallery_Empty(t *testing.T) {
	g := NewGallery(0.6)

	best := g.Identify(Descriptor{1, 0, 0})
	if best.Label != UnknownLabel {
		t.Errorf("expected unknown for empty gallery, got %q", best.Label)
	}
	if best.Distance != 1 {
		t.Errorf("Distance = %v, want 1", best.Distance)
	}
}

func TestGallery_Remove(t *testing.T) {
	g := NewGallery(0.6)
	mustPut(t, g, "alice", Descriptor{0, 0, 1})
	mustPut(t, g, "bob", Descriptor{1, 0, 0})
	g.Remove("bob")
	g.Remove("carol")

	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
	if best := g.Identify(Descriptor{1, 0, 0}); best.Label != UnknownLabel {
		t.Errorf("removed label still identified: %q", best.Label)
	}
	if best := g.Identify(Descriptor{0, 0, 1}); best.Label != "alice" {
		t.Errorf("expected alice after removing bob, got %q", best.Label)
	}

	g.Remove("alice")
	mustPut(t, g, "carol", Descriptor{0, 1})
	if best := g.Identify(Descriptor{0, 1}); best.Label != "carol" {
		t.Errorf("expected carol in emptied gallery, got %q", best.Label)
	}
}

func TestGallery_DimensionMismatch(t *testing.T) {
	g := NewGallery(0.6)
	mustPut(t, g, "alice", Descriptor{0, 0, 1})

	best := g.Identify(Descriptor{0, 1})
	if best.Label != UnknownLabel || best.Distance != 1 {
		t.Errorf("Identify with short descriptor = %q at %v, want unknown at 1", best.Label, best.Distance)
	}

	mustPut(t, g, "bob", Descriptor{1, 0, 0})
	err := g.Put("carol", Descriptor{0, 1})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Put with short descriptor error = %v, want ErrDimensionMismatch", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}

	if err := g.Put("alice", Descriptor{}); err == nil {
		t.Error("expected error for empty descriptor")
	}
}

func TestGallery_SingleEntryChangesDimension(t *testing.T) {
	g := NewGallery(0.6)
	mustPut(t, g, "alice", Descriptor{0, 0, 1})
	mustPut(t, g, "alice", Descriptor{0, 1})

	best := g.Identify(Descriptor{0, 1})
	if best.Label != "alice" || math.Abs(best.Distance) > 1e-9 {
		t.Errorf("expected alice at 0, got %q at %v", best.Label, best.Distance)
	}
}

func mustPut(t *testing.T, g *Gallery, label string, d Descriptor) {
	t.Helper()
	if err := g.Put(label, d); err != nil {
		t.Fatalf("Put(%s) error: %v", label, err)
	}
}
