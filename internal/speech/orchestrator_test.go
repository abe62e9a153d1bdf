package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mediflow/triagecore/internal/models"
)

type recResult struct {
	text string
	err  error
}

// fakeRecognizer serves scripted results and unblocks on Stop.
type fakeRecognizer struct {
	results chan recResult

	mu      sync.Mutex
	stops   int
	stopped chan struct{}
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{
		results: make(chan recResult, 4),
		stopped: make(chan struct{}, 4),
	}
}

func (f *fakeRecognizer) Listen(ctx context.Context) (string, error) {
	select {
	case r := <-f.results:
		return r.text, r.err
	case <-f.stopped:
		return "", errors.New("recognition cancelled")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	select {
	case f.stopped <- struct{}{}:
	default:
	}
}

func (f *fakeRecognizer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// fakeSynthesizer records spoken text; an optional gate holds Speak open.
type fakeSynthesizer struct {
	mu     sync.Mutex
	spoken []string
	gate   chan struct{}
}

func (f *fakeSynthesizer) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeSynthesizer) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

// fakeEngine records submitted answers.
type fakeEngine struct {
	mu        sync.Mutex
	submitted []string
}

func (f *fakeEngine) SubmitAnswer(text string) {
	f.mu.Lock()
	f.submitted = append(f.submitted, text)
	f.mu.Unlock()
}

func (f *fakeEngine) answers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.submitted))
	copy(out, f.submitted)
	return out
}

// slowGate holds the permission prompt open until release is closed, then
// grants; Granted reports true afterwards, as platforms do once the
// permission persists.
type slowGate struct {
	release chan struct{}

	mu      sync.Mutex
	granted bool
}

func (g *slowGate) Granted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

func (g *slowGate) Request(ctx context.Context) (bool, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	g.mu.Lock()
	g.granted = true
	g.mu.Unlock()
	return true, nil
}

// deniedGate simulates a user refusing the microphone permission prompt.
type deniedGate struct{}

func (deniedGate) Granted() bool                         { return false }
func (deniedGate) Request(context.Context) (bool, error) { return false, nil }

// stateRecorder captures speech-state transitions from the consumer loop.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return StateIdle
	}
	return r.states[len(r.states)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func entries(texts ...string) []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(texts))
	for i, text := range texts {
		out[i] = models.TranscriptEntry{Speaker: models.SpeakerAssistant, Text: text}
	}
	return out
}

func TestSpeaksNewAssistantEntriesInOrder(t *testing.T) {
	synth := &fakeSynthesizer{}
	o := NewOrchestrator(Config{
		Engine:      &fakeEngine{},
		Recognizer:  newFakeRecognizer(),
		Synthesizer: synth,
	})
	defer o.Close()

	o.ObserveTranscript(entries("Hello!", "How many days?"))

	waitFor(t, func() bool { return len(synth.spokenTexts()) == 2 })
	spoken := synth.spokenTexts()
	if spoken[0] != "Hello!" || spoken[1] != "How many days?" {
		t.Errorf("expected in-order synthesis, got %v", spoken)
	}
}

// Re-entering a screen reconstructs the orchestrator over an existing
// transcript; previously-seen assistant entries must not be spoken again.
func TestSeedTranscriptIsNeverRespoken(t *testing.T) {
	seed := entries("Hello!", "How many days?")
	synth := &fakeSynthesizer{}
	o := NewOrchestrator(Config{
		Engine:         &fakeEngine{},
		Recognizer:     newFakeRecognizer(),
		Synthesizer:    synth,
		SeedTranscript: seed,
	})
	defer o.Close()

	o.ObserveTranscript(seed)
	grown := append(append([]models.TranscriptEntry{}, seed...),
		models.TranscriptEntry{Speaker: models.SpeakerAssistant, Text: "Is the cough dry or wet?"})
	o.ObserveTranscript(grown)

	waitFor(t, func() bool { return len(synth.spokenTexts()) == 1 })
	time.Sleep(30 * time.Millisecond)

	spoken := synth.spokenTexts()
	if len(spoken) != 1 || spoken[0] != "Is the cough dry or wet?" {
		t.Errorf("expected only the new entry spoken, got %v", spoken)
	}
}

func TestRecognizedSpeechIsSubmitted(t *testing.T) {
	rec := newFakeRecognizer()
	engine := &fakeEngine{}
	states := &stateRecorder{}
	o := NewOrchestrator(Config{
		Engine:      engine,
		Recognizer:  rec,
		Synthesizer: &fakeSynthesizer{},
		OnState:     states.record,
	})
	defer o.Close()

	o.TapMic()
	waitFor(t, func() bool { return states.last() == StateListening })

	rec.results <- recResult{text: "about three days"}

	waitFor(t, func() bool { return len(engine.answers()) == 1 })
	if engine.answers()[0] != "about three days" {
		t.Errorf("expected transcript submitted, got %v", engine.answers())
	}
	waitFor(t, func() bool { return states.last() == StateIdle })
}

func TestEmptyOrFailedRecognitionSubmitsNothing(t *testing.T) {
	cases := []struct {
		name   string
		result recResult
	}{
		{"empty transcript", recResult{text: ""}},
		{"recognizer error", recResult{err: errors.New("timeout")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := newFakeRecognizer()
			engine := &fakeEngine{}
			states := &stateRecorder{}
			o := NewOrchestrator(Config{
				Engine:      engine,
				Recognizer:  rec,
				Synthesizer: &fakeSynthesizer{},
				OnState:     states.record,
			})
			defer o.Close()

			o.TapMic()
			waitFor(t, func() bool { return states.last() == StateListening })
			rec.results <- tc.result
			waitFor(t, func() bool { return states.last() == StateIdle })

			if len(engine.answers()) != 0 {
				t.Errorf("expected no submission, got %v", engine.answers())
			}
		})
	}
}

func TestTapStopCancelsWithoutSubmission(t *testing.T) {
	rec := newFakeRecognizer()
	engine := &fakeEngine{}
	states := &stateRecorder{}
	o := NewOrchestrator(Config{
		Engine:      engine,
		Recognizer:  rec,
		Synthesizer: &fakeSynthesizer{},
		OnState:     states.record,
	})
	defer o.Close()

	o.TapMic()
	waitFor(t, func() bool { return states.last() == StateListening })

	o.TapStop()
	waitFor(t, func() bool { return states.last() == StateIdle })
	waitFor(t, func() bool { return rec.stopCount() == 1 })

	// A transcript that surfaces after the stop is stale and discarded.
	rec.results <- recResult{text: "too late"}
	time.Sleep(30 * time.Millisecond)

	if len(engine.answers()) != 0 {
		t.Errorf("stale recognition was submitted: %v", engine.answers())
	}
}

// A mic tap while the assistant is speaking is queued and starts listening
// once synthesis completes.
func TestMicTapQueuedWhileSpeaking(t *testing.T) {
	gate := make(chan struct{})
	synth := &fakeSynthesizer{gate: gate}
	rec := newFakeRecognizer()
	engine := &fakeEngine{}
	states := &stateRecorder{}
	o := NewOrchestrator(Config{
		Engine:      engine,
		Recognizer:  rec,
		Synthesizer: synth,
		OnState:     states.record,
	})
	defer o.Close()

	o.ObserveTranscript(entries("Hello!"))
	waitFor(t, func() bool { return states.last() == StateSpeaking })

	o.TapMic()
	time.Sleep(30 * time.Millisecond)
	if states.last() != StateSpeaking {
		t.Fatalf("listening must not start while speaking, state %s", states.last())
	}

	close(gate)
	waitFor(t, func() bool { return states.last() == StateListening })

	rec.results <- recResult{text: "hi"}
	waitFor(t, func() bool { return len(engine.answers()) == 1 })
}

func TestPermissionDeniedStaysIdle(t *testing.T) {
	var mu sync.Mutex
	var notices []string
	states := &stateRecorder{}
	o := NewOrchestrator(Config{
		Engine:      &fakeEngine{},
		Recognizer:  newFakeRecognizer(),
		Synthesizer: &fakeSynthesizer{},
		Permissions: deniedGate{},
		OnState:     states.record,
		OnNotice: func(msg string) {
			mu.Lock()
			notices = append(notices, msg)
			mu.Unlock()
		},
	})
	defer o.Close()

	o.TapMic()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(notices) == 1
	})
	if states.last() != StateIdle {
		t.Errorf("denied permission must stay idle, state %s", states.last())
	}
}

// A permission grant that arrives while the assistant is speaking behaves
// like a mic tap in that state: listening starts once synthesis completes,
// without a second tap.
func TestPermissionGrantDuringSpeechIsQueued(t *testing.T) {
	gate := &slowGate{release: make(chan struct{})}
	synthGate := make(chan struct{})
	synth := &fakeSynthesizer{gate: synthGate}
	rec := newFakeRecognizer()
	states := &stateRecorder{}
	o := NewOrchestrator(Config{
		Engine:      &fakeEngine{},
		Recognizer:  rec,
		Synthesizer: synth,
		Permissions: gate,
		OnState:     states.record,
	})
	defer o.Close()

	o.TapMic() // permission prompt opens
	o.ObserveTranscript(entries("Hello!"))
	waitFor(t, func() bool { return states.last() == StateSpeaking })

	close(gate.release) // user grants mid-synthesis
	time.Sleep(30 * time.Millisecond)
	if states.last() != StateSpeaking {
		t.Fatalf("grant must not interrupt speech, state %s", states.last())
	}

	close(synthGate)
	waitFor(t, func() bool { return states.last() == StateListening })
}

func TestMissingPortsDegradeToTextOnly(t *testing.T) {
	var mu sync.Mutex
	var notices []string
	o := NewOrchestrator(Config{
		Engine: &fakeEngine{},
		OnNotice: func(msg string) {
			mu.Lock()
			notices = append(notices, msg)
			mu.Unlock()
		},
	})
	defer o.Close()

	if o.Available() {
		t.Error("orchestrator without ports must report unavailable")
	}

	o.TapMic()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(notices) == 1
	})

	// Assistant entries are consumed without synthesis rather than queueing
	// forever.
	o.ObserveTranscript(entries("Hello!"))
	time.Sleep(30 * time.Millisecond)
}
