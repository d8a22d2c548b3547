package facematch

import (
	"errors"
	"math"

	"github.com/kozaktomas/biogate/internal/biometric"
)

// Matcher finds the best matching label for a descriptor among a set of
// labeled reference descriptors.
type Matcher struct {
	labeled   []LabeledDescriptors
	threshold float64
}

// NewMatcher creates a matcher. Labels without descriptors are rejected.
func NewMatcher(labeled []LabeledDescriptors, threshold float64) (*Matcher, error) {
	if len(labeled) == 0 {
		return nil, errors.New("at least one labeled descriptor set is required")
	}
	for _, l := range labeled {
		if len(l.Descriptors) == 0 {
			return nil, errors.New("labeled descriptor set " + l.Label + " is empty")
		}
	}
	return &Matcher{labeled: labeled, threshold: threshold}, nil
}

// meanDistance averages the distance from d to every reference descriptor.
func meanDistance(refs []Descriptor, d Descriptor) float64 {
	var sum float64
	for _, ref := range refs {
		sum += Distance(ref, d)
	}
	return sum / float64(len(refs))
}

// FindBestMatch returns the closest label. The label is UnknownLabel when the
// best distance is not below the threshold.
func (m *Matcher) FindBestMatch(d Descriptor) BestMatch {
	best := BestMatch{Label: UnknownLabel, Distance: math.Inf(1)}
	for _, l := range m.labeled {
		dist := meanDistance(l.Descriptors, d)
		if dist < best.Distance {
			best = BestMatch{Label: l.Label, Distance: dist}
		}
	}
	if best.Distance >= m.threshold {
		best.Label = UnknownLabel
	}
	return best
}

// Match compares a live descriptor against the references and applies the
// threshold. A face matches iff its label is resolved and distance < threshold.
func (m *Matcher) Match(live Descriptor) biometric.MatchResult {
	best := m.FindBestMatch(live)
	if math.IsInf(best.Distance, 1) {
		return biometric.Failed(1, biometric.FailureLiveDetection, "Descriptor size mismatch")
	}
	matched := best.Resolved() && best.Distance < m.threshold
	res := biometric.MatchResult{Matched: matched, Score: best.Distance}
	if !matched {
		res.Failure = biometric.FailureMismatch
	}
	return res
}
