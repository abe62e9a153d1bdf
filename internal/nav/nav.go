// Package nav provides the screen router for triagecore.
//
// Navigation is modeled as an explicit stack of screen descriptors. The stack
// is the only source of truth for "which screen is active"; screens never
// reach into it directly and all mutation goes through the four operations
// Push, Pop, ReplaceTop and ResetTo.
package nav

import "github.com/mediflow/triagecore/internal/models"

// Screen tags every destination the router can display.
type Screen string

const (
	ScreenSplash        Screen = "splash"
	ScreenLogin         Screen = "login"
	ScreenSignup        Screen = "signup"
	ScreenHome          Screen = "home"
	ScreenSymptoms      Screen = "symptoms"
	ScreenChat          Screen = "chat"
	ScreenVoice         Screen = "voice"
	ScreenReport        Screen = "report"
	ScreenPatients      Screen = "patients"
	ScreenPatientDetail Screen = "patient_detail"
	ScreenProfile       Screen = "profile"
	ScreenSettings      Screen = "settings"
)

// IsValidScreen checks if the given screen tag is supported.
func IsValidScreen(s Screen) bool {
	switch s {
	case ScreenSplash, ScreenLogin, ScreenSignup, ScreenHome, ScreenSymptoms,
		ScreenChat, ScreenVoice, ScreenReport, ScreenPatients,
		ScreenPatientDetail, ScreenProfile, ScreenSettings:
		return true
	default:
		return false
	}
}

// Descriptor identifies a screen plus the parameters it was opened with.
// Immutable once pushed.
type Descriptor struct {
	Screen Screen
	Params models.ScreenParams
}
