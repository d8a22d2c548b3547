package login

import (
	"github.com/kozaktomas/biogate/internal/biometric"
)

// Status texts shown once an attempt resolves.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Outcome is the single resolution of a login attempt.
type Outcome struct {
	Success     bool                  `json:"success"`
	Status      string                `json:"status"`
	Face        biometric.MatchResult `json:"face"`
	Audio       biometric.MatchResult `json:"audio"`
	Speech      biometric.MatchResult `json:"speech"`
	Phrase      string                `json:"phrase"`
	Transcript  string                `json:"transcript"`
	Diagnostics []string              `json:"diagnostics"`
}

// Aggregate combines the modality results. Face and audio must both match;
// speech only counts when requireSpeech is set.
func Aggregate(face, audio, speech biometric.MatchResult, requireSpeech bool) Outcome {
	success := face.Matched && audio.Matched
	if requireSpeech {
		success = success && speech.Matched
	}

	status := StatusFailure
	if success {
		status = StatusSuccess
	}

	return Outcome{
		Success: success,
		Status:  status,
		Face:    face,
		Audio:   audio,
		Speech:  speech,
		Diagnostics: []string{
			face.Describe(biometric.ModalityFace),
			audio.Describe(biometric.ModalityAudio),
			speech.Describe(biometric.ModalitySpeech),
		},
	}
}

// FailureReasons lists "modality: reason" for every modality that did not match.
func (o Outcome) FailureReasons() []string {
	var reasons []string
	add := func(m biometric.Modality, r biometric.MatchResult) {
		if r.Matched {
			return
		}
		reason := r.Reason
		if reason == "" {
			reason = string(r.Failure)
		}
		reasons = append(reasons, string(m)+": "+reason)
	}
	add(biometric.ModalityFace, o.Face)
	add(biometric.ModalityAudio, o.Audio)
	add(biometric.ModalitySpeech, o.Speech)
	return reasons
}
