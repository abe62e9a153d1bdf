// Package speech provides the voice-modality orchestration for triagecore.
//
// Platform speech recognition and synthesis are modeled as two independent
// event producers feeding a single consumer loop, so the intake engine
// itself stays synchronous and can be tested by feeding synthetic events.
package speech

import "context"

// State is the speech side of the voice screen. Exactly one state is active
// at a time; Listening and Speaking are mutually exclusive.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
)

// Recognizer is a single-shot speech recognition session source. Listen
// blocks until a final transcript, an error, or a timeout; Stop cancels an
// in-progress Listen, which then returns with an error.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
	Stop()
}

// Synthesizer speaks text to completion. Speak blocks until synthesis is
// done or the context is cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// PermissionGate wraps the platform microphone-permission prompt.
type PermissionGate interface {
	// Granted reports whether permission has already been given.
	Granted() bool
	// Request prompts the user and reports the outcome.
	Request(ctx context.Context) (bool, error)
}

// AlwaysGranted is a PermissionGate for environments without a permission
// model (tests, the terminal client).
type AlwaysGranted struct{}

func (AlwaysGranted) Granted() bool { return true }

func (AlwaysGranted) Request(context.Context) (bool, error) { return true, nil }
