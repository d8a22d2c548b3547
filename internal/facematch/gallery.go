package facematch

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// galleryMaxNeighbors (M) is the maximum number of neighbors per node.
const galleryMaxNeighbors = 16

// ErrDimensionMismatch is returned when a descriptor does not have the
// dimensionality of the descriptors already indexed.
var ErrDimensionMismatch = errors.New("descriptor dimension mismatch")

// Gallery indexes one reference descriptor per account for 1:N identification.
//
// The HNSW graph cannot drop nodes safely, so entries is the source of truth
// and the graph is rebuilt from it whenever a label is replaced or removed.
type Gallery struct {
	graph     *hnsw.Graph[string]
	entries   map[string]Descriptor
	dims      int
	threshold float64
	mu        sync.RWMutex
}

// NewGallery creates an empty gallery using Euclidean distance.
func NewGallery(threshold float64) *Gallery {
	return &Gallery{
		graph:     newGraph(),
		entries:   make(map[string]Descriptor),
		threshold: threshold,
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = galleryMaxNeighbors
	g.Ml = 1.0 / float64(galleryMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Put stores or replaces the reference descriptor for a label. An unchanged
// descriptor is a no-op.
func (g *Gallery) Put(label string, d Descriptor) error {
	if len(d) == 0 {
		return errors.New("descriptor is empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prev, exists := g.entries[label]
	if exists && slices.Equal(prev, d) {
		return nil
	}

	// The only entry may be replaced by one of another size.
	onlyThis := exists && len(g.entries) == 1
	if g.dims != 0 && len(d) != g.dims && !onlyThis {
		return fmt.Errorf("%w: %s has %d, gallery has %d", ErrDimensionMismatch, label, len(d), g.dims)
	}

	vec := make(Descriptor, len(d))
	copy(vec, d)
	g.entries[label] = vec
	g.dims = len(vec)

	if exists {
		g.rebuild()
		return nil
	}
	g.graph.Add(hnsw.MakeNode(label, []float32(vec)))
	return nil
}

// Remove drops a label from the gallery.
func (g *Gallery) Remove(label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[label]; !ok {
		return
	}
	delete(g.entries, label)
	if len(g.entries) == 0 {
		g.dims = 0
	}
	g.rebuild()
}

// rebuild replaces the graph with one holding exactly the current entries.
// Callers hold the write lock.
func (g *Gallery) rebuild() {
	labels := make([]string, 0, len(g.entries))
	for label := range g.entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	graph := newGraph()
	for _, label := range labels {
		graph.Add(hnsw.MakeNode(label, []float32(g.entries[label])))
	}
	g.graph = graph
}

// Len returns the number of indexed labels.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Identify returns the closest label, or UnknownLabel when nothing is below
// the threshold. A descriptor that cannot be compared against the gallery
// yields UnknownLabel at distance 1.
func (g *Gallery) Identify(d Descriptor) BestMatch {
	g.mu.RLock()
	defer g.mu.RUnlock()

	best := BestMatch{Label: UnknownLabel, Distance: math.Inf(1)}
	if len(g.entries) > 0 && len(d) == g.dims {
		for _, n := range g.graph.Search([]float32(d), 1) {
			dist := Distance(d, Descriptor(n.Value))
			if dist < best.Distance {
				best = BestMatch{Label: n.Key, Distance: dist}
			}
		}
	}
	if math.IsInf(best.Distance, 0) || math.IsNaN(best.Distance) {
		best = BestMatch{Label: UnknownLabel, Distance: 1}
	}
	if best.Distance >= g.threshold {
		best.Label = UnknownLabel
	}
	return best
}
