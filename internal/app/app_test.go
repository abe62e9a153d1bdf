package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mediflow/triagecore/internal/intake"
	"github.com/mediflow/triagecore/internal/models"
	"github.com/mediflow/triagecore/internal/nav"
)

type fakeService struct {
	mu            sync.Mutex
	questions     []string
	result        *models.AnalysisResult
	questionsGate chan struct{}

	questionsCalls int
}

func (f *fakeService) GetQuestions(ctx context.Context, patientID string, symptoms []string) ([]string, error) {
	f.mu.Lock()
	f.questionsCalls++
	gate := f.questionsGate
	questions := f.questions
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return questions, nil
}

func (f *fakeService) Analyze(ctx context.Context, patientID string, symptoms []string, answers map[string]string) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, nil
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

func TestNewRootsAtSplash(t *testing.T) {
	a := New(&fakeService{}, SpeechPorts{}, "")
	screens := a.Stack().Screens()
	if len(screens) != 1 || screens[0].Screen != nav.ScreenSplash {
		t.Errorf("expected stack rooted at splash, got %v", screens)
	}
	if a.PatientID() == "" {
		t.Error("expected a generated patient ID")
	}
}

func TestFinishSplashReplacesRoot(t *testing.T) {
	a := New(&fakeService{}, SpeechPorts{}, "patient-1")
	a.FinishSplash()

	screens := a.Stack().Screens()
	if len(screens) != 1 || screens[0].Screen != nav.ScreenHome {
		t.Errorf("expected [home], got %v", screens)
	}
	if a.Back() {
		t.Error("back from the replaced root must defer to the platform")
	}
}

func TestCompleteLoginClearsHistory(t *testing.T) {
	a := New(&fakeService{}, SpeechPorts{}, "patient-1")
	a.Stack().Push(nav.Descriptor{Screen: nav.ScreenLogin})
	a.Stack().Push(nav.Descriptor{Screen: nav.ScreenSignup})

	a.CompleteLogin()

	screens := a.Stack().Screens()
	if len(screens) != 1 || screens[0].Screen != nav.ScreenHome {
		t.Errorf("expected [home] after login, got %v", screens)
	}
}

func TestLogoutClearsSymptomsAndResetsToLogin(t *testing.T) {
	a := New(&fakeService{}, SpeechPorts{}, "patient-1")
	a.CompleteLogin()
	a.State().AddSymptom("fever")
	a.OpenSymptoms()

	a.Logout()

	screens := a.Stack().Screens()
	if len(screens) != 1 || screens[0].Screen != nav.ScreenLogin {
		t.Errorf("expected [login] after logout, got %v", screens)
	}
	if len(a.State().Symptoms()) != 0 {
		t.Errorf("expected symptoms cleared, got %v", a.State().Symptoms())
	}
}

func TestStartChatRunsIntakeOverSelectedSymptoms(t *testing.T) {
	svc := &fakeService{questions: []string{"How many days have you had these symptoms?"}}
	a := New(svc, SpeechPorts{}, "patient-1")
	a.CompleteLogin()
	a.State().AddSymptom("fever")

	var mu sync.Mutex
	var last intake.Snapshot
	session := a.StartChat(func(snap intake.Snapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})

	if top := a.Stack().Current().Screen; top != nav.ScreenChat {
		t.Fatalf("expected chat on top, got %s", top)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.State == intake.StatePrompting
	})
	if session.Engine == nil {
		t.Fatal("expected a live engine in the session")
	}
}

// Leaving the chat screen is the only thing that releases its engine; a
// questions response arriving after the pop must be discarded.
func TestLeavingChatClosesEngineAndDiscardsLateResponse(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{
		questions:     []string{"How many days have you had these symptoms?"},
		questionsGate: gate,
	}
	a := New(svc, SpeechPorts{}, "patient-1")
	a.CompleteLogin()
	a.State().AddSymptom("fever")

	var mu sync.Mutex
	var states []intake.State
	session := a.StartChat(func(snap intake.Snapshot) {
		mu.Lock()
		states = append(states, snap.State)
		mu.Unlock()
	})

	waitFor(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.questionsCalls == 1
	})

	// Pop the chat screen while the fetch is still in flight.
	a.Stack().Pop()
	close(gate)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	for _, s := range states {
		if s == intake.StatePrompting {
			t.Error("late questions response mutated a closed engine")
		}
	}
	mu.Unlock()

	if snap := session.Engine.Snapshot(); snap.State == intake.StatePrompting {
		t.Errorf("closed engine advanced to %s", snap.State)
	}
}

func TestAnalysisPushesReportWithTriageTheme(t *testing.T) {
	svc := &fakeService{
		questions: []string{"How many days have you had these symptoms?"},
		result:    &models.AnalysisResult{TriageLevel: 1, SeverityScore: 0.9, Report: "Seek care now."},
	}
	a := New(svc, SpeechPorts{}, "patient-1")
	a.CompleteLogin()
	a.State().AddSymptom("fever")

	var mu sync.Mutex
	var last intake.Snapshot
	session := a.StartChat(func(snap intake.Snapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.State == intake.StatePrompting
	})
	session.Engine.SubmitAnswer("3 days")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.State == intake.StateConcluded
	})

	session.Engine.RequestAnalysis()

	waitFor(t, func() bool {
		return a.Stack().Current().Screen == nav.ScreenReport
	})
	params := a.Stack().Current().Params
	if params.ReportID == "" {
		t.Error("expected a report ID")
	}
	if params.ThemeColor != "#C62828" {
		t.Errorf("expected the most-urgent theme color, got %s", params.ThemeColor)
	}
}

func TestStartVoiceWithoutPortsStillRunsIntake(t *testing.T) {
	svc := &fakeService{questions: []string{"How many days have you had these symptoms?"}}
	a := New(svc, SpeechPorts{}, "patient-1")
	a.CompleteLogin()
	a.State().AddSymptom("cough")

	var mu sync.Mutex
	var last intake.Snapshot
	session := a.StartVoice(func(snap intake.Snapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	}, nil, nil)

	if session.Speech.Available() {
		t.Error("voice session without ports must report speech unavailable")
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.State == intake.StatePrompting
	})

	// Leaving the screen tears down both the orchestrator and the engine.
	a.Stack().Pop()
	if top := a.Stack().Current().Screen; top != nav.ScreenHome {
		t.Errorf("expected home after pop, got %s", top)
	}
	session.Engine.SubmitAnswer("ignored")
	if snap := session.Engine.Snapshot(); len(snap.Transcript) > 2 {
		t.Errorf("closed engine accepted an answer: %d entries", len(snap.Transcript))
	}
}

func TestTriageColorTiers(t *testing.T) {
	cases := map[int]string{
		1: "#C62828",
		2: "#EF6C00",
		3: "#F9A825",
		4: "#2E7D32",
		0: "#2E7D32",
	}
	for level, want := range cases {
		if got := triageColor(level); got != want {
			t.Errorf("triageColor(%d) = %s, want %s", level, got, want)
		}
	}
}
