// Package speech confirms that the account holder spoke the expected phrase.
package speech

import (
	"errors"
	"math/rand/v2"

	"github.com/kozaktomas/biogate/internal/biometric"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PhraseSet is the static list of phrases a user may be asked to speak.
type PhraseSet struct {
	phrases []string
}

// NewPhraseSet creates a set. At least one phrase is required.
func NewPhraseSet(phrases []string) (*PhraseSet, error) {
	var kept []string
	for _, p := range phrases {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("phrase set is empty")
	}
	return &PhraseSet{phrases: kept}, nil
}

// Phrases returns a copy of all phrases.
func (s *PhraseSet) Phrases() []string {
	out := make([]string, len(s.phrases))
	copy(out, s.phrases)
	return out
}

// Choose returns a phrase picked uniformly at random.
func (s *PhraseSet) Choose() string {
	return s.phrases[rand.IntN(len(s.phrases))] //nolint:gosec // not security sensitive
}

var lower = cases.Lower(language.Und)

// Confirm reports whether the transcript equals the phrase ignoring case.
// No trimming or fuzzy matching is applied.
func Confirm(transcript, phrase string) bool {
	return lower.String(transcript) == lower.String(phrase)
}

// Check turns a transcript into a match result. Score is 1 on a match and 0 otherwise.
func Check(transcript, phrase string) biometric.MatchResult {
	if transcript == "" {
		return biometric.Failed(0, biometric.FailureMismatch, "No speech recognized")
	}
	if Confirm(transcript, phrase) {
		return biometric.MatchResult{Matched: true, Score: 1}
	}
	return biometric.Failed(0, biometric.FailureMismatch, "Transcript does not match phrase")
}
