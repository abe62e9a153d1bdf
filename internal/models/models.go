// Package models defines the core data structures for triagecore.
//
// It includes types for conversation transcripts, analysis results, and patient
// summaries, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerUser marks an entry typed or spoken by the patient.
	SpeakerUser Speaker = "user"
	// SpeakerAssistant marks an entry produced by the intake engine.
	SpeakerAssistant Speaker = "assistant"
)

// Sentinel errors shared across packages, for errors.Is checks at call sites.
var (
	ErrEmptyPatientID = errors.New("patient id cannot be empty")
	ErrNoSymptoms     = errors.New("at least one symptom is required")
	ErrEngineClosed   = errors.New("intake engine has been closed")
	ErrEngineStarted  = errors.New("intake engine already started")
)

// TranscriptEntry is a single turn in an intake conversation.
// Entries are append-only and never reordered once recorded.
type TranscriptEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DiseaseProbability pairs a candidate condition with the model's confidence.
type DiseaseProbability struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// AnalysisResult is the triage outcome returned by the remote intake service.
type AnalysisResult struct {
	TriageLevel      int                  `json:"triage"`
	SeverityScore    float64              `json:"severityScore"`
	Report           string               `json:"report"`
	PossibleDiseases []DiseaseProbability `json:"possibleDiseases"`
}

// PatientStatus is the roster presentation state of a patient.
type PatientStatus string

const (
	PatientStatusStable   PatientStatus = "stable"
	PatientStatusWatch    PatientStatus = "watch"
	PatientStatusCritical PatientStatus = "critical"
)

// IsValidPatientStatus checks if the given status is supported.
func IsValidPatientStatus(s PatientStatus) bool {
	switch s {
	case PatientStatusStable, PatientStatusWatch, PatientStatusCritical:
		return true
	default:
		return false
	}
}

// PatientSummary is one row of the in-memory patient roster.
type PatientSummary struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status PatientStatus `json:"status"`
	Color  string        `json:"color,omitempty"` // presentation hint, e.g. "#E53935"
}

// ScreenParams carries the typed payload of a screen descriptor.
// Zero values mean "parameter not supplied".
type ScreenParams struct {
	ReportID   string `json:"report_id,omitempty"`
	PatientID  string `json:"patient_id,omitempty"`
	ThemeColor string `json:"theme_color,omitempty"`
	InitialTab int    `json:"initial_tab,omitempty"`
}

// QuestionsRequest is the wire request for the follow-up question call.
type QuestionsRequest struct {
	PatientID string   `json:"patientId"`
	Symptoms  []string `json:"symptoms"`
}

// QuestionsResponse is the wire response for the follow-up question call.
type QuestionsResponse struct {
	Questions []string `json:"questions"`
}

// AnalyzeRequest is the wire request for the analysis call.
type AnalyzeRequest struct {
	PatientID string            `json:"patientId"`
	Symptoms  []string          `json:"symptoms"`
	Answers   map[string]string `json:"answers"`
}
