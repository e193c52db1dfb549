package turn

// State represents the per-call turn state.
type State int

const (
	// StateIdle is the initial state before the call starts.
	StateIdle State = iota
	// StateListening is when caller audio accumulates into the utterance buffer.
	StateListening
	// StateThinking is when a finalized utterance is in the STT/dialogue
	// pipeline. Inbound frames are dropped, not queued.
	StateThinking
	// StateSpeaking is when synthesized audio is streaming out and the
	// barge-in monitor is active.
	StateSpeaking
	// StateClosed is terminal: call teardown from any state.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateThinking:
		return "THINKING"
	case StateSpeaking:
		return "SPEAKING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
