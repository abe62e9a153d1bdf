// Package stubserver implements the remote intake service HTTP contract
// with canned heuristics, for local development and tests.
package stubserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mediflow/triagecore/internal/models"
)

// NewRouter builds the stub intake service router.
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/v1/questions", handleQuestions)
	r.Post("/v1/analyze", handleAnalyze)
	return r
}

func handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req models.QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" {
		req.PatientID = uuid.NewString()
	}

	questions := questionsFor(req.Symptoms)
	slog.Debug("stubserver questions", "patientID", req.PatientID, "count", len(questions))
	writeJSON(w, http.StatusOK, models.QuestionsResponse{Questions: questions})
}

func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	result := analyze(req)
	slog.Debug("stubserver analyze", "patientID", req.PatientID, "triage", result.TriageLevel)
	writeJSON(w, http.StatusOK, result)
}

// questionsFor returns a canned question list keyed off the symptom set.
func questionsFor(symptoms []string) []string {
	questions := []string{
		"How many days have you had these symptoms?",
		"On a scale of 1 to 10, how severe is the pain?",
	}
	for _, s := range symptoms {
		switch strings.ToLower(s) {
		case "cough":
			questions = append(questions, "Is the cough dry or wet?")
		case "fever":
			questions = append(questions, "Have you measured your temperature?")
		case "headache":
			questions = append(questions, "Is the headache on one side or both?")
		}
	}
	return questions
}

// analyze computes a toy severity score from the answer contents.
func analyze(req models.AnalyzeRequest) models.AnalysisResult {
	score := 0.1 * float64(len(req.Answers))
	for _, answer := range req.Answers {
		low := strings.ToLower(answer)
		if strings.Contains(low, "severe") || strings.Contains(low, "10") || strings.Contains(low, "9") {
			score += 0.3
		}
	}
	if score > 1.0 {
		score = 1.0
	}

	triage := 4
	switch {
	case score >= 0.8:
		triage = 1
	case score >= 0.5:
		triage = 2
	case score >= 0.3:
		triage = 3
	}

	diseases := []models.DiseaseProbability{}
	for _, s := range req.Symptoms {
		switch strings.ToLower(s) {
		case "fever", "cough":
			diseases = append(diseases, models.DiseaseProbability{Name: "Upper respiratory infection", Probability: 0.6})
		case "headache":
			diseases = append(diseases, models.DiseaseProbability{Name: "Tension headache", Probability: 0.5})
		}
	}

	return models.AnalysisResult{
		TriageLevel:      triage,
		SeverityScore:    score,
		Report:           fmt.Sprintf("Reported symptoms: %s. %d intake answers recorded.", strings.Join(req.Symptoms, ", "), len(req.Answers)),
		PossibleDiseases: diseases,
	}
}

// writeJSON writes a JSON response, marshaling before writing headers so an
// encoding failure can still produce a 500.
func writeJSON(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("stubserver failed to marshal response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(jsonData); err != nil {
		slog.Error("stubserver failed to write response", "error", err)
	}
}
