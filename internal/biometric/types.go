// Package biometric holds the result types shared by the face, audio and
// speech matchers.
package biometric

import "fmt"

// Modality identifies one of the checks that make up a login attempt.
type Modality string

const (
	ModalityFace   Modality = "face"
	ModalityAudio  Modality = "audio"
	ModalitySpeech Modality = "speech"
)

// Failure classifies why a modality did not produce a positive match.
type Failure string

const (
	FailureNone             Failure = ""
	FailureModelLoad        Failure = "model_load"        // reference image or model could not be loaded
	FailureNoFaceReference  Failure = "no_face_reference" // reference image has no detectable face
	FailureLiveDetection    Failure = "live_detection"    // live frame detection failed or found no face
	FailureDevicePermission Failure = "device_permission" // camera, microphone or recognizer unavailable
	FailureNetwork          Failure = "network"           // transport error talking to a collaborator
	FailureBadStatus        Failure = "bad_status"        // collaborator answered with a non-2xx status
	FailureMismatch         Failure = "mismatch"          // check ran but the score was outside the threshold
	FailureCancelled        Failure = "cancelled"         // attempt was cancelled or superseded
	FailureSkipped          Failure = "skipped"           // attempt resolved before the check ran
)

// MatchResult is the outcome of a single modality.
// Score is the face distance, the audio cosine similarity, or 1/0 for speech.
type MatchResult struct {
	Matched bool    `json:"matched"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
	Failure Failure `json:"failure,omitempty"`
}

// Failed builds a non-matching result with a reason.
func Failed(score float64, failure Failure, reason string) MatchResult {
	return MatchResult{Matched: false, Score: score, Reason: reason, Failure: failure}
}

// scoreLabel returns the name of the numeric score for a modality.
func scoreLabel(m Modality) string {
	switch m {
	case ModalityFace:
		return "Distance"
	case ModalityAudio:
		return "Similarity"
	default:
		return "Score"
	}
}

// Describe renders the per-modality diagnostic line shown to the user,
// e.g. "Face Match: Success (Distance: 0.3412)".
func (r MatchResult) Describe(m Modality) string {
	verdict := "Failed"
	if r.Matched {
		verdict = "Success"
	}
	var name string
	switch m {
	case ModalityFace:
		name = "Face Match"
	case ModalityAudio:
		name = "Audio Match"
	default:
		name = "Text match"
	}
	s := fmt.Sprintf("%s: %s (%s: %.4f)", name, verdict, scoreLabel(m), r.Score)
	if r.Reason != "" {
		s += " - Reason: " + r.Reason
	}
	return s
}
