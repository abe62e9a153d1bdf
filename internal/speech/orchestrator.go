package speech

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mediflow/triagecore/internal/models"
)

// AnswerSubmitter is the slice of the intake engine the orchestrator needs:
// a recognized utterance is submitted exactly like typed text.
type AnswerSubmitter interface {
	SubmitAnswer(text string)
}

type eventKind int

const (
	evTapMic eventKind = iota
	evTapStop
	evPermission
	evRecognized
	evTranscript
	evSpoken
)

// event is one message on the orchestrator's merge queue. Which fields are
// set depends on kind.
type event struct {
	kind    eventKind
	gen     int
	text    string
	err     error
	granted bool
	entries []string
}

// Config wires an Orchestrator to its collaborators. Recognizer or
// Synthesizer may be nil, in which case the orchestrator degrades to a
// text-only experience and reports it through OnNotice instead of failing.
type Config struct {
	Engine      AnswerSubmitter
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Permissions PermissionGate
	// SeedTranscript marks assistant entries that existed before this
	// orchestrator attached, so re-entering a screen never re-speaks them.
	SeedTranscript []models.TranscriptEntry
	// OnState is invoked from the consumer loop on every speech-state change.
	OnState func(State)
	// OnNotice surfaces one-line, non-fatal messages (permission denied,
	// voice unavailable, recognition failed).
	OnNotice func(string)
}

// Orchestrator merges microphone taps, recognition results, synthesis
// completions and new assistant transcript entries into one consumer loop.
// All speech state lives in that loop; public methods only post events.
type Orchestrator struct {
	cfg Config

	events chan event
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// NewOrchestrator creates and starts the consumer loop.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Permissions == nil {
		cfg.Permissions = AlwaysGranted{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:    cfg,
		events: make(chan event, 32),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go o.run()
	return o
}

// Available reports whether both speech directions are usable.
func (o *Orchestrator) Available() bool {
	return o.cfg.Recognizer != nil && o.cfg.Synthesizer != nil
}

// TapMic is the user pressing the microphone control.
func (o *Orchestrator) TapMic() { o.post(event{kind: evTapMic}) }

// TapStop is the user pressing the stop control while listening.
func (o *Orchestrator) TapStop() { o.post(event{kind: evTapStop}) }

// ObserveTranscript feeds the engine's current transcript into the loop.
// Wire it to the engine's OnUpdate callback; only assistant entries beyond
// the already-spoken count will be synthesized.
func (o *Orchestrator) ObserveTranscript(transcript []models.TranscriptEntry) {
	assistant := make([]string, 0, len(transcript))
	for _, entry := range transcript {
		if entry.Speaker == models.SpeakerAssistant {
			assistant = append(assistant, entry.Text)
		}
	}
	o.post(event{kind: evTranscript, entries: assistant})
}

// Close stops the loop and cancels any active recognition or synthesis.
// Triggered by the router's leave hook when the voice screen is popped.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.cancel()
		if o.cfg.Recognizer != nil {
			o.cfg.Recognizer.Stop()
		}
		<-o.done
		slog.Debug("Orchestrator closed")
	})
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.ctx.Done():
	}
}

// run is the single consumer of the event queue. It owns all speech state:
// no other goroutine reads or writes these variables.
func (o *Orchestrator) run() {
	defer close(o.done)

	state := StateIdle
	spoken := countAssistant(o.cfg.SeedTranscript)
	var speakQueue []string
	micQueued := false
	listenGen := 0

	setState := func(s State) {
		if s == state {
			return
		}
		state = s
		slog.Debug("Orchestrator state", "state", s)
		if o.cfg.OnState != nil {
			o.cfg.OnState(s)
		}
	}

	notify := func(msg string) {
		if o.cfg.OnNotice != nil {
			o.cfg.OnNotice(msg)
		}
	}

	startListening := func() {
		listenGen++
		gen := listenGen
		setState(StateListening)
		go func() {
			text, err := o.cfg.Recognizer.Listen(o.ctx)
			o.post(event{kind: evRecognized, gen: gen, text: text, err: err})
		}()
	}

	maybeSpeak := func() {
		if state != StateIdle || len(speakQueue) == 0 {
			return
		}
		text := speakQueue[0]
		speakQueue = speakQueue[1:]
		setState(StateSpeaking)
		go func() {
			if err := o.cfg.Synthesizer.Speak(o.ctx, text); err != nil {
				slog.Warn("Orchestrator synthesis failed", "error", err)
			}
			o.post(event{kind: evSpoken})
		}()
	}

	requestMic := func() {
		switch {
		case !o.Available():
			notify("Voice input is unavailable on this device. You can keep typing your answers.")
		case state == StateSpeaking:
			// Mic control is disabled in the UI while speaking; a queued
			// request starts listening once synthesis completes.
			micQueued = true
		case state == StateListening:
			// already listening
		case o.cfg.Permissions.Granted():
			startListening()
		default:
			go func() {
				granted, err := o.cfg.Permissions.Request(o.ctx)
				o.post(event{kind: evPermission, granted: granted && err == nil})
			}()
		}
	}

	for {
		var ev event
		select {
		case ev = <-o.events:
		case <-o.ctx.Done():
			return
		}

		switch ev.kind {
		case evTapMic:
			requestMic()

		case evTapStop:
			if state == StateListening {
				// Invalidate the pending Listen so its completion is
				// discarded; no submission happens.
				listenGen++
				o.cfg.Recognizer.Stop()
				setState(StateIdle)
				maybeSpeak()
			}

		case evPermission:
			if !ev.granted {
				notify("Microphone permission was denied. You can keep typing your answers.")
				continue
			}
			switch state {
			case StateIdle:
				startListening()
			case StateSpeaking:
				// The grant landed mid-synthesis; queue it like a mic tap
				// so the user does not have to tap again.
				micQueued = true
			}

		case evRecognized:
			if ev.gen != listenGen || state != StateListening {
				slog.Debug("Orchestrator discarding stale recognition", "gen", ev.gen)
				continue
			}
			setState(StateIdle)
			switch {
			case ev.err != nil:
				slog.Warn("Orchestrator recognition failed", "error", ev.err)
				notify("I didn't catch that. Tap the microphone to try again.")
			case ev.text != "":
				o.cfg.Engine.SubmitAnswer(ev.text)
			}
			maybeSpeak()

		case evTranscript:
			for ; spoken < len(ev.entries); spoken++ {
				if o.cfg.Synthesizer == nil {
					continue
				}
				speakQueue = append(speakQueue, ev.entries[spoken])
			}
			maybeSpeak()

		case evSpoken:
			setState(StateIdle)
			if micQueued {
				micQueued = false
				requestMic()
				continue
			}
			maybeSpeak()
		}
	}
}

func countAssistant(transcript []models.TranscriptEntry) int {
	n := 0
	for _, entry := range transcript {
		if entry.Speaker == models.SpeakerAssistant {
			n++
		}
	}
	return n
}
