// Package domain defines the core types and interfaces for the push-to-talk
// endpoint. All other packages depend on domain; domain depends on nothing.
package domain

// State is the UI state of the endpoint. Exactly one is current at a time
// and only the controller changes it.
type State int

const (
	StateInit State = iota
	StateConnecting
	StateIdle
	StateRecording
	StateProcessing
	StatePlaying
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ButtonEvent is what the button interrupt latches: a pending press and
// the monotonic millisecond timestamp of its falling edge.
type ButtonEvent struct {
	Pressed bool
	At      int64
}

// Interaction summarises one press-to-playback cycle. Observers receive it
// as soon as the outcome is known: discarded, failed, or playback started.
type Interaction struct {
	CapturedBytes int
	Discarded     bool // shorter than the minimum capture
	SessionID     string
	Transcription string
	AudioBytes    int64
	Err           error
	StartedAt     int64 // monotonic ms
	FinishedAt    int64 // monotonic ms
}
