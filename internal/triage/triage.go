// Package triage defines the client boundary to the remote intake service.
//
// The backend's question-generation and diagnosis algorithms are opaque to
// this module: they are reached through two request/response operations and
// nothing else.
package triage

import (
	"context"
	"strings"

	"github.com/mediflow/triagecore/internal/models"
)

// Service is the remote intake service as seen by the intake engine.
type Service interface {
	// GetQuestions returns the ordered follow-up questions for a symptom set.
	// An empty list is a valid "no follow-up needed" response, not an error.
	GetQuestions(ctx context.Context, patientID string, symptoms []string) ([]string, error)

	// Analyze produces a triage result from the full answer transcript.
	Analyze(ctx context.Context, patientID string, symptoms []string, answers map[string]string) (*models.AnalysisResult, error)
}

// ValidateIntakeInput rejects requests no backend can answer before any
// network call goes out. Service implementations call it at the top of both
// operations.
func ValidateIntakeInput(patientID string, symptoms []string) error {
	if strings.TrimSpace(patientID) == "" {
		return models.ErrEmptyPatientID
	}
	if len(symptoms) == 0 {
		return models.ErrNoSymptoms
	}
	return nil
}
