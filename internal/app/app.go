// Package app wires the router, the hoisted state store and the intake
// engines into one application core. It owns screen lifecycle: an engine or
// speech session created for a screen is released by that screen's leave
// hook and in no other way.
package app

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mediflow/triagecore/internal/hoist"
	"github.com/mediflow/triagecore/internal/intake"
	"github.com/mediflow/triagecore/internal/models"
	"github.com/mediflow/triagecore/internal/nav"
	"github.com/mediflow/triagecore/internal/speech"
	"github.com/mediflow/triagecore/internal/triage"
)

// SpeechPorts bundles the platform speech capabilities. Any of the fields
// may be nil; the voice screen then degrades to text-only input.
type SpeechPorts struct {
	Recognizer  speech.Recognizer
	Synthesizer speech.Synthesizer
	Permissions speech.PermissionGate
}

// ChatSession is the text-modality intake conversation owned by the chat screen.
type ChatSession struct {
	Engine *intake.Engine
}

// VoiceSession is the voice-modality intake conversation: the same engine
// plus the speech orchestrator.
type VoiceSession struct {
	Engine *intake.Engine
	Speech *speech.Orchestrator
}

// App is the process root of the client core.
type App struct {
	stack   *nav.Stack
	state   *hoist.Store
	svc     triage.Service
	ports   SpeechPorts
	patient string

	mu    sync.Mutex
	chat  *ChatSession
	voice *VoiceSession
}

// New creates an application rooted at the splash screen.
func New(svc triage.Service, ports SpeechPorts, patientID string) *App {
	if patientID == "" {
		patientID = uuid.NewString()
	}
	return &App{
		stack:   nav.NewStack(nav.Descriptor{Screen: nav.ScreenSplash}),
		state:   hoist.NewStore(),
		svc:     svc,
		ports:   ports,
		patient: patientID,
	}
}

// Stack exposes the router for the rendering layer.
func (a *App) Stack() *nav.Stack { return a.stack }

// State exposes the hoisted cross-screen state.
func (a *App) State() *hoist.Store { return a.state }

// PatientID returns the active patient identifier.
func (a *App) PatientID() string { return a.patient }

// FinishSplash replaces the splash screen so it cannot be reached by back
// navigation.
func (a *App) FinishSplash() {
	a.stack.ReplaceTop(nav.Descriptor{Screen: nav.ScreenHome})
}

// CompleteLogin resets the stack after a successful login; pre-login screens
// must not be reachable.
func (a *App) CompleteLogin() {
	a.stack.ResetTo(nav.Descriptor{Screen: nav.ScreenHome})
}

// Logout resets the stack to the login screen.
func (a *App) Logout() {
	a.state.ClearSymptoms()
	a.stack.ResetTo(nav.Descriptor{Screen: nav.ScreenLogin})
}

// OpenSymptoms pushes the symptom selection screen.
func (a *App) OpenSymptoms() {
	a.stack.Push(nav.Descriptor{Screen: nav.ScreenSymptoms})
}

// Back applies the global back-gesture rule: consume the gesture by popping
// when the stack is deeper than the root, otherwise let the platform handle it.
func (a *App) Back() bool {
	return a.stack.HandleBack()
}

// StartChat opens the chat screen with a fresh intake engine for the current
// symptom selection. Popping the screen closes the engine, which abandons
// any in-flight network call.
func (a *App) StartChat(onUpdate func(intake.Snapshot)) *ChatSession {
	engine := intake.NewEngine(a.svc, intake.Config{
		PatientID:  a.patient,
		Symptoms:   a.state.Symptoms(),
		OnUpdate:   onUpdate,
		OnAnalysis: a.showReport,
	})
	session := &ChatSession{Engine: engine}

	a.mu.Lock()
	a.chat = session
	a.mu.Unlock()

	a.stack.PushWithCleanup(nav.Descriptor{Screen: nav.ScreenChat}, func() {
		engine.Close()
		a.mu.Lock()
		if a.chat == session {
			a.chat = nil
		}
		a.mu.Unlock()
	})

	if err := engine.Start(); err != nil {
		slog.Warn("App chat intake start rejected", "error", err)
	}
	return session
}

// StartVoice opens the voice screen: the chat engine plus the speech
// orchestrator subscribed to its transcript. Popping the screen closes the
// orchestrator first (stopping any recognition or synthesis) and then the
// engine.
func (a *App) StartVoice(onUpdate func(intake.Snapshot), onSpeechState func(speech.State), onNotice func(string)) *VoiceSession {
	var session *VoiceSession

	engine := intake.NewEngine(a.svc, intake.Config{
		PatientID: a.patient,
		Symptoms:  a.state.Symptoms(),
		OnUpdate: func(snap intake.Snapshot) {
			if session != nil && session.Speech != nil {
				session.Speech.ObserveTranscript(snap.Transcript)
			}
			if onUpdate != nil {
				onUpdate(snap)
			}
		},
		OnAnalysis: a.showReport,
	})

	orchestrator := speech.NewOrchestrator(speech.Config{
		Engine:         engine,
		Recognizer:     a.ports.Recognizer,
		Synthesizer:    a.ports.Synthesizer,
		Permissions:    a.ports.Permissions,
		SeedTranscript: engine.Snapshot().Transcript,
		OnState:        onSpeechState,
		OnNotice:       onNotice,
	})
	session = &VoiceSession{Engine: engine, Speech: orchestrator}

	a.mu.Lock()
	a.voice = session
	a.mu.Unlock()

	a.stack.PushWithCleanup(nav.Descriptor{Screen: nav.ScreenVoice}, func() {
		orchestrator.Close()
		engine.Close()
		a.mu.Lock()
		if a.voice == session {
			a.voice = nil
		}
		a.mu.Unlock()
	})

	if err := engine.Start(); err != nil {
		slog.Warn("App voice intake start rejected", "error", err)
	}
	return session
}

// showReport is the analysis completion callback: it pushes the results
// screen with the triage color as its theme.
func (a *App) showReport(result *models.AnalysisResult) {
	slog.Info("App opening report", "triage", result.TriageLevel)
	a.stack.Push(nav.Descriptor{
		Screen: nav.ScreenReport,
		Params: models.ScreenParams{
			ReportID:   uuid.NewString(),
			ThemeColor: triageColor(result.TriageLevel),
		},
	})
}

// triageColor maps a triage tier to its presentation color.
func triageColor(level int) string {
	switch level {
	case 1:
		return "#C62828"
	case 2:
		return "#EF6C00"
	case 3:
		return "#F9A825"
	default:
		return "#2E7D32"
	}
}
