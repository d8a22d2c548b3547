package login

// State is a step of the login attempt state machine.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingModels  State = "awaiting_models"
	StateAwaitingCapture State = "awaiting_capture"
	StateAwaitingAudio   State = "awaiting_audio_result"
	StateAwaitingFace    State = "awaiting_face_result"
	StateAwaitingSpeech  State = "awaiting_speech_result"
	StateResolved        State = "resolved"
)

// forward is the single successor of each non-terminal state.
var forward = map[State]State{
	StateIdle:            StateAwaitingModels,
	StateAwaitingModels:  StateAwaitingCapture,
	StateAwaitingCapture: StateAwaitingAudio,
	StateAwaitingAudio:   StateAwaitingFace,
	StateAwaitingFace:    StateAwaitingSpeech,
	StateAwaitingSpeech:  StateResolved,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateResolved
}

// CanTransition reports whether from may move to to. Any live state may
// resolve early (failed model load, cancellation); otherwise only the
// forward step is allowed.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateResolved {
		return true
	}
	return forward[from] == to
}

// Message returns the loading text shown while in s.
func (s State) Message() string {
	switch s {
	case StateAwaitingModels:
		return "Loading face models..."
	case StateAwaitingCapture:
		return "Waiting for camera and microphone..."
	case StateAwaitingAudio:
		return "Checking voice..."
	case StateAwaitingFace:
		return "Scanning face..."
	case StateAwaitingSpeech:
		return "Checking spoken phrase..."
	case StateResolved:
		return "Done."
	default:
		return ""
	}
}
