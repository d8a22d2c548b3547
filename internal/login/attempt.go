package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/biogate/internal/biometric"
	"github.com/kozaktomas/biogate/internal/facematch"
)

var (
	// ErrAttemptNotFound is returned for unknown or pruned attempt IDs.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptResolved is returned when an attempt already has its outcome.
	ErrAttemptResolved = errors.New("attempt already resolved")
	// ErrCaptureNotReady is returned when capture is requested outside awaiting_capture.
	ErrCaptureNotReady = errors.New("attempt is not awaiting capture")
	// ErrSuperseded is the cancellation cause when a newer attempt starts for the same account.
	ErrSuperseded = errors.New("superseded by a new attempt")
	// ErrCancelled is the cancellation cause for an explicit cancel.
	ErrCancelled = errors.New("cancelled")
)

// modalities in the order results are shown.
var modalities = []biometric.Modality{
	biometric.ModalityFace,
	biometric.ModalityAudio,
	biometric.ModalitySpeech,
}

// Attempt is one run through the login state machine for an account. Its
// context is the cancellation token: cancelling it stops every in-flight
// collaborator call and releases the attempt's devices.
type Attempt struct {
	Broadcaster

	ID        string
	AccountID string
	Phrase    string
	CreatedAt time.Time

	mu            sync.RWMutex
	state         State
	results       map[biometric.Modality]biometric.MatchResult
	transcript    string
	outcome       *Outcome
	resolvedAt    time.Time
	matcher       *facematch.Matcher
	release       func() error
	capturing     bool
	requireSpeech bool

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
}

func newAttempt(id, accountID, phrase string, requireSpeech bool, now time.Time) *Attempt {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Attempt{
		ID:            id,
		AccountID:     accountID,
		Phrase:        phrase,
		CreatedAt:     now,
		state:         StateIdle,
		results:       make(map[biometric.Modality]biometric.MatchResult),
		requireSpeech: requireSpeech,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// State returns the current state.
func (a *Attempt) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Outcome returns the outcome, or nil while the attempt is unresolved.
func (a *Attempt) Outcome() *Outcome {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.outcome
}

// Done is closed when the attempt resolves.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Context returns the attempt's cancellation token.
func (a *Attempt) Context() context.Context {
	return a.ctx
}

// View is a JSON snapshot of an attempt.
type View struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	Phrase     string     `json:"phrase"`
	State      State      `json:"state"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Outcome    *Outcome   `json:"outcome,omitempty"`
}

// View returns a snapshot of the attempt.
func (a *Attempt) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v := View{
		ID:        a.ID,
		AccountID: a.AccountID,
		Phrase:    a.Phrase,
		State:     a.state,
		Message:   a.state.Message(),
		CreatedAt: a.CreatedAt,
		Outcome:   a.outcome,
	}
	if !a.resolvedAt.IsZero() {
		t := a.resolvedAt
		v.ResolvedAt = &t
	}
	return v
}

// transition moves to the next state and broadcasts it.
func (a *Attempt) transition(to State) error {
	a.mu.Lock()
	from := a.state
	if from.Terminal() {
		a.mu.Unlock()
		return ErrAttemptResolved
	}
	if !CanTransition(from, to) {
		a.mu.Unlock()
		return fmt.Errorf("invalid transition %s -> %s", from, to)
	}
	a.state = to
	a.mu.Unlock()

	a.SendEvent(Event{Type: EventState, State: to, Message: to.Message()})
	return nil
}

// beginCapture marks the attempt as capturing. Only one capture may run.
func (a *Attempt) beginCapture(release func() error) (*facematch.Matcher, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() {
		return nil, ErrAttemptResolved
	}
	if a.state != StateAwaitingCapture || a.capturing {
		return nil, ErrCaptureNotReady
	}
	a.capturing = true
	a.release = release
	return a.matcher, nil
}

func (a *Attempt) setMatcher(m *facematch.Matcher) {
	a.mu.Lock()
	a.matcher = m
	a.mu.Unlock()
}

// setResult records a modality result. Results arriving after resolution are dropped.
func (a *Attempt) setResult(m biometric.Modality, r biometric.MatchResult) {
	a.mu.Lock()
	if a.state.Terminal() {
		a.mu.Unlock()
		return
	}
	a.results[m] = r
	a.mu.Unlock()

	a.SendEvent(Event{Type: EventResult, Message: r.Describe(m), Data: map[string]any{
		"modality": m,
		"result":   r,
	}})
}

func (a *Attempt) setTranscript(text string) {
	a.mu.Lock()
	a.transcript = text
	a.mu.Unlock()
}

// status broadcasts a loading message.
func (a *Attempt) status(message string) {
	a.SendEvent(Event{Type: EventStatus, State: a.State(), Message: message})
}

// cancelReason is the user facing reason for a cancelled modality.
func cancelReason(cause error) string {
	switch {
	case errors.Is(cause, ErrSuperseded):
		return "Superseded by a new attempt"
	case cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, ErrCancelled):
		return "Cancelled: " + cause.Error()
	default:
		return "Cancelled"
	}
}

// resolve computes the outcome exactly once. Modalities without a result are
// filled with a failed result: cancelled if the token fired, skipped
// otherwise. It returns the outcome and whether this call resolved it.
func (a *Attempt) resolve(now time.Time) (*Outcome, bool) {
	a.mu.Lock()
	if a.outcome != nil {
		out := a.outcome
		a.mu.Unlock()
		return out, false
	}

	var missing biometric.MatchResult
	if a.ctx.Err() != nil {
		missing = biometric.Failed(0, biometric.FailureCancelled, cancelReason(context.Cause(a.ctx)))
	} else {
		missing = biometric.Failed(0, biometric.FailureSkipped, "Not attempted")
	}
	for _, m := range modalities {
		if _, ok := a.results[m]; !ok {
			r := missing
			if m == biometric.ModalityFace {
				r.Score = 1
			}
			a.results[m] = r
		}
	}

	out := Aggregate(a.results[biometric.ModalityFace], a.results[biometric.ModalityAudio], a.results[biometric.ModalitySpeech], a.requireSpeech)
	out.Phrase = a.Phrase
	out.Transcript = a.transcript

	a.outcome = &out
	a.state = StateResolved
	a.resolvedAt = now
	release := a.release
	a.release = nil
	a.mu.Unlock()

	if release != nil {
		release()
	}
	a.cancel(nil)
	close(a.done)

	a.SendEvent(Event{Type: EventState, State: StateResolved, Message: StateResolved.Message()})
	a.SendEvent(Event{Type: EventResolved, State: StateResolved, Message: out.Status, Data: out})
	a.closeListeners()
	return &out, true
}

// resolvedBefore reports whether the attempt resolved before t.
func (a *Attempt) resolvedBefore(t time.Time) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.outcome != nil && a.resolvedAt.Before(t)
}
