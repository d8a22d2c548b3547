// Package capture acquires the camera frame, the voice clip and the spoken
// transcript for a login attempt.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/biogate/internal/biometric"
	"github.com/kozaktomas/biogate/internal/constants"
)

// ErrNoDevice is returned when a media source has nothing for a modality.
var ErrNoDevice = errors.New("device not available")

// Camera provides live frames.
type Camera interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// Microphone records a clip for exactly the given window.
type Microphone interface {
	Record(ctx context.Context, window time.Duration) ([]byte, error)
	Close() error
}

// SpeechRecognizer produces the first transcript heard.
type SpeechRecognizer interface {
	Result(ctx context.Context) (string, error)
	Close() error
}

// Source opens devices for one attempt. Each call corresponds to a
// permission request in the browser.
type Source interface {
	OpenCamera(ctx context.Context) (Camera, error)
	OpenMicrophone(ctx context.Context) (Microphone, error)
	StartRecognition(ctx context.Context) (SpeechRecognizer, error)
}

// Media is what one capture produced. A modality whose acquisition failed
// has an empty payload and a failed Status entry.
type Media struct {
	Frame      []byte
	Audio      []byte
	Transcript string
	Status     map[biometric.Modality]biometric.MatchResult
}

// Failed reports whether acquisition of the modality failed.
func (m *Media) Failed(mod biometric.Modality) bool {
	r, ok := m.Status[mod]
	return ok && r.Failure != biometric.FailureNone
}

// StatusFunc receives user-facing progress messages.
type StatusFunc func(message string)

// Orchestrator acquires all modalities in a fixed order.
type Orchestrator struct {
	window time.Duration
	status StatusFunc

	mu     sync.Mutex
	opened []interface{ Close() error }
}

// NewOrchestrator creates an orchestrator recording audio for window.
func NewOrchestrator(window time.Duration, status StatusFunc) *Orchestrator {
	if window <= 0 {
		window = constants.RecordWindow
	}
	if status == nil {
		status = func(string) {}
	}
	return &Orchestrator{window: window, status: status}
}

func (o *Orchestrator) track(c interface{ Close() error }) {
	o.mu.Lock()
	o.opened = append(o.opened, c)
	o.mu.Unlock()
}

// failureScore is the score recorded for a failed modality. A failed face
// check reports the worst distance.
func failureScore(mod biometric.Modality) float64 {
	if mod == biometric.ModalityFace {
		return 1
	}
	return 0
}

func deviceFailure(mod biometric.Modality, what string, err error) biometric.MatchResult {
	score := failureScore(mod)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return biometric.Failed(score, biometric.FailureCancelled, "Cancelled")
	}
	return biometric.Failed(score, biometric.FailureDevicePermission, fmt.Sprintf("%s unavailable: %v", what, err))
}

// Acquire requests the camera, then the microphone, then speech recognition.
// A failing step marks only its own modality; devices already opened stay
// open until Release. Nothing is retried.
func (o *Orchestrator) Acquire(ctx context.Context, src Source) *Media {
	m := &Media{Status: make(map[biometric.Modality]biometric.MatchResult)}

	cam, err := src.OpenCamera(ctx)
	if err != nil {
		m.Status[biometric.ModalityFace] = deviceFailure(biometric.ModalityFace, "Camera", err)
		cam = nil
	} else {
		o.track(cam)
	}

	mic, err := src.OpenMicrophone(ctx)
	if err != nil {
		m.Status[biometric.ModalityAudio] = deviceFailure(biometric.ModalityAudio, "Microphone", err)
		mic = nil
	} else {
		o.track(mic)
	}

	rec, err := src.StartRecognition(ctx)
	if err != nil {
		m.Status[biometric.ModalitySpeech] = deviceFailure(biometric.ModalitySpeech, "Speech recognition", err)
		rec = nil
	} else {
		o.track(rec)
	}

	if mic != nil {
		o.status("Recording audio...")
		clip, err := mic.Record(ctx, o.window)
		if err != nil {
			m.Status[biometric.ModalityAudio] = deviceFailure(biometric.ModalityAudio, "Microphone", err)
		} else {
			m.Audio = clip
		}
		o.status("Audio recording finished.")
	}

	if cam != nil {
		frame, err := cam.Frame(ctx)
		if err != nil {
			m.Status[biometric.ModalityFace] = deviceFailure(biometric.ModalityFace, "Camera", err)
		} else {
			m.Frame = frame
		}
	}

	if rec != nil {
		text, err := rec.Result(ctx)
		if err != nil {
			m.Status[biometric.ModalitySpeech] = deviceFailure(biometric.ModalitySpeech, "Speech recognition", err)
		} else {
			m.Transcript = text
		}
	}

	return m
}

// Release closes every device opened by Acquire. It is safe to call more than once.
func (o *Orchestrator) Release() error {
	o.mu.Lock()
	opened := o.opened
	o.opened = nil
	o.mu.Unlock()

	var errs []error
	for i := len(opened) - 1; i >= 0; i-- {
		if err := opened[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
