package intake

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mediflow/triagecore/internal/models"
	"github.com/mediflow/triagecore/internal/triage"
)

// State identifies where the intake conversation currently stands.
type State string

const (
	// StateAwaitingQuestions is the initial state while the question fetch
	// is in flight.
	StateAwaitingQuestions State = "awaiting_questions"
	// StatePrompting means the engine is walking the server-supplied
	// question list.
	StatePrompting State = "prompting"
	// StateFreeform is the degraded accept-any-input mode entered when the
	// question fetch failed or returned no questions. Input is recorded but
	// not classified.
	StateFreeform State = "freeform"
	// StateConcluded means every question has been answered.
	StateConcluded State = "concluded"
	// StateAnalyzing means an analysis call is in flight.
	StateAnalyzing State = "analyzing"
	// StateAnalysisComplete is terminal: the analysis result is available.
	StateAnalysisComplete State = "analysis_complete"
	// StateAnalysisFailed is retryable: the analysis call failed and the
	// user may request it again.
	StateAnalysisFailed State = "analysis_failed"
)

// Fixed conversation strings. The closing messages are always appended as a
// pair once the last question is answered.
const (
	closingGathered = "Thanks! I've gathered all the information I need."
	closingAnalyze  = "Click Analyze when you're ready for your assessment."

	emptyListGreeting = "Hello! Tell me about how you're feeling and I'll record everything for your assessment."
	degradedGreeting  = "Hello! I'm having trouble reaching the triage service right now, but you can describe your symptoms and I'll record everything for the analysis."
)

// Snapshot is an immutable view of engine state handed to observers.
type Snapshot struct {
	State      State
	Transcript []models.TranscriptEntry
	Answers    map[string]string
	Questions  []string
	Cursor     int
	Notice     string
	Result     *models.AnalysisResult
}

// Config carries the per-screen inputs of an engine instance.
type Config struct {
	PatientID string
	Symptoms  []string
	// Transcript seeds the conversation log, used when a screen is
	// re-entered with an existing conversation.
	Transcript []models.TranscriptEntry
	// OnUpdate is invoked after every state mutation with a fresh snapshot.
	OnUpdate func(Snapshot)
	// OnAnalysis is invoked once per successful analysis, after the state
	// transition to StateAnalysisComplete.
	OnAnalysis func(*models.AnalysisResult)
}

// Engine owns the question cursor, the transcript and the answer map for one
// intake conversation. It is instantiated once per modality screen (text or
// voice) and discarded when that screen is popped.
//
// All mutation happens under mu. Asynchronous completions re-check the
// closed flag before touching state, so a disposed engine is never mutated.
type Engine struct {
	svc triage.Service
	cfg Config

	mu         sync.Mutex
	state      State
	questions  []string
	cursor     int
	transcript []models.TranscriptEntry
	answers    map[string]string
	notice     string
	result     *models.AnalysisResult
	started    bool
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an engine for one screen instance. Start must be called
// once when the owning screen becomes active.
func NewEngine(svc triage.Service, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		svc:        svc,
		cfg:        cfg,
		state:      StateAwaitingQuestions,
		transcript: append([]models.TranscriptEntry(nil), cfg.Transcript...),
		answers:    make(map[string]string),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start issues the question fetch. The engine never issues a second fetch
// for the same screen instance: repeated calls return ErrEngineStarted, and
// a disposed engine returns ErrEngineClosed.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		slog.Debug("Engine Start ignored", "closed", true)
		return models.ErrEngineClosed
	}
	if e.started {
		e.mu.Unlock()
		slog.Debug("Engine Start ignored", "started", true)
		return models.ErrEngineStarted
	}
	e.started = true
	patientID := e.cfg.PatientID
	symptoms := append([]string(nil), e.cfg.Symptoms...)
	e.mu.Unlock()

	slog.Info("Engine starting intake", "patientID", patientID, "symptoms", len(symptoms))

	go func() {
		questions, err := e.svc.GetQuestions(e.ctx, patientID, symptoms)
		e.applyQuestions(questions, err)
	}()
	return nil
}

// applyQuestions merges the question-fetch completion into engine state. A
// late completion for a closed engine is discarded, and one that lands after
// the user already moved on (analysis can start before the fetch resolves)
// stashes the questions without touching the current state.
func (e *Engine) applyQuestions(questions []string, err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		slog.Debug("Engine discarding question fetch for closed engine")
		return
	}
	if e.state != StateAwaitingQuestions {
		if err == nil {
			e.questions = questions
		}
		e.mu.Unlock()
		slog.Debug("Engine stashing late question fetch", "state", e.state)
		return
	}

	switch {
	case err != nil:
		slog.Warn("Engine question fetch failed, continuing in freeform mode", "error", err)
		e.state = StateFreeform
		e.appendEntry(models.SpeakerAssistant, degradedGreeting)
	case len(questions) == 0:
		slog.Debug("Engine received no follow-up questions")
		e.state = StateFreeform
		e.appendEntry(models.SpeakerAssistant, emptyListGreeting)
	default:
		e.questions = questions
		e.cursor = 0
		e.state = StatePrompting
		e.appendEntry(models.SpeakerAssistant, e.greeting())
		e.appendEntry(models.SpeakerAssistant, questions[0])
		slog.Debug("Engine prompting", "questions", len(questions))
	}
	e.notifyLocked()
}

// greeting names the reported symptoms so the patient can confirm them.
func (e *Engine) greeting() string {
	return "Hello! I see you're experiencing: " + strings.Join(e.cfg.Symptoms, ", ") + ". Let's go through a few quick questions."
}

// SubmitAnswer records one user turn. Blank or whitespace-only input never
// mutates the transcript, the answer map or the cursor; anything else is
// stored exactly as supplied. While prompting, the answer is classified
// against the question that is active right now, so a fast user cannot race
// the classification against a later prompt.
func (e *Engine) SubmitAnswer(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	e.appendEntry(models.SpeakerUser, text)

	if e.state == StatePrompting && e.cursor < len(e.questions) {
		slot := SlotForQuestion(e.questions[e.cursor], e.cursor)
		e.answers[slot] = text
		slog.Debug("Engine answer recorded", "slot", slot, "cursor", e.cursor)

		if e.cursor < len(e.questions)-1 {
			e.cursor++
			e.appendEntry(models.SpeakerAssistant, e.questions[e.cursor])
		} else {
			e.appendEntry(models.SpeakerAssistant, closingGathered)
			e.appendEntry(models.SpeakerAssistant, closingAnalyze)
			e.state = StateConcluded
			slog.Info("Engine intake concluded", "answers", len(e.answers))
		}
	}

	e.notifyLocked()
}

// RequestAnalysis issues the analyze call. A second request while one is in
// flight is a no-op; the owning screen surfaces this as a disabled control.
// Retries after a failure are user-triggered calls to this same method.
func (e *Engine) RequestAnalysis() {
	e.mu.Lock()
	if e.closed || e.state == StateAnalyzing {
		e.mu.Unlock()
		slog.Debug("Engine RequestAnalysis ignored", "state", e.state, "closed", e.closed)
		return
	}
	e.state = StateAnalyzing
	e.notice = ""

	patientID := e.cfg.PatientID
	symptoms := append([]string(nil), e.cfg.Symptoms...)
	answers := make(map[string]string, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	e.notifyLocked()

	slog.Info("Engine requesting analysis", "patientID", patientID, "answers", len(answers))

	go func() {
		result, err := e.svc.Analyze(e.ctx, patientID, symptoms, answers)
		e.applyAnalysis(result, err)
	}()
}

// applyAnalysis merges the analyze completion into engine state.
func (e *Engine) applyAnalysis(result *models.AnalysisResult, err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		slog.Debug("Engine discarding analysis for closed engine")
		return
	}

	if err != nil {
		slog.Error("Engine analysis failed", "error", err)
		e.state = StateAnalysisFailed
		e.notice = "Analysis could not be completed. Please check your connection and try again."
		e.notifyLocked()
		return
	}

	e.state = StateAnalysisComplete
	e.result = result
	onAnalysis := e.cfg.OnAnalysis
	e.notifyLocked()

	slog.Info("Engine analysis complete", "triage", result.TriageLevel)
	if onAnalysis != nil {
		onAnalysis(result)
	}
}

// Close disposes the engine: in-flight calls are abandoned and any late
// completion is discarded without mutating state. Triggered by the router's
// leave hook when the owning screen is popped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	slog.Debug("Engine closed")
}

// Snapshot returns a copy of the observable engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	transcript := make([]models.TranscriptEntry, len(e.transcript))
	copy(transcript, e.transcript)
	answers := make(map[string]string, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	questions := make([]string, len(e.questions))
	copy(questions, e.questions)
	return Snapshot{
		State:      e.state,
		Transcript: transcript,
		Answers:    answers,
		Questions:  questions,
		Cursor:     e.cursor,
		Notice:     e.notice,
		Result:     e.result,
	}
}

// appendEntry adds a transcript turn. Must hold the lock.
func (e *Engine) appendEntry(speaker models.Speaker, text string) {
	e.transcript = append(e.transcript, models.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// notifyLocked releases the lock and then delivers the snapshot, so the
// observer can call back into the engine without deadlocking.
func (e *Engine) notifyLocked() {
	snap := e.snapshotLocked()
	onUpdate := e.cfg.OnUpdate
	e.mu.Unlock()
	if onUpdate != nil {
		onUpdate(snap)
	}
}
