// Package facematch compares a live face against an account's reference face
// using face descriptors and a fixed distance threshold.
package facematch

import (
	"errors"
	"math"
)

// UnknownLabel is the label FindBestMatch returns when no reference is close enough.
const UnknownLabel = "unknown"

// ErrNoFace is returned by a Detector when the image contains no detectable face.
var ErrNoFace = errors.New("no face detected")

// Descriptor is a fixed-length face embedding.
type Descriptor []float32

// Distance returns the Euclidean distance between two descriptors.
// Descriptors of different lengths are infinitely far apart.
func Distance(a, b Descriptor) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// LabeledDescriptors groups reference descriptors under one label (an account ID).
type LabeledDescriptors struct {
	Label       string
	Descriptors []Descriptor
}

// BestMatch is the closest label for a query descriptor.
type BestMatch struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Resolved reports whether the match carries a real label.
func (b BestMatch) Resolved() bool {
	return b.Label != "" && b.Label != UnknownLabel
}
