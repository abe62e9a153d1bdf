package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mediflow/triagecore/internal/models"
)

// DefaultTimeout bounds each intake call when the caller supplies no deadline.
const DefaultTimeout = 30 * time.Second

// HTTPService reaches the intake service over HTTP/JSON.
type HTTPService struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPService creates a client for the intake service at baseURL.
func NewHTTPService(baseURL string) *HTTPService {
	return &HTTPService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// GetQuestions implements Service.
func (s *HTTPService) GetQuestions(ctx context.Context, patientID string, symptoms []string) ([]string, error) {
	if err := ValidateIntakeInput(patientID, symptoms); err != nil {
		return nil, err
	}
	req := models.QuestionsRequest{PatientID: patientID, Symptoms: symptoms}
	var resp models.QuestionsResponse
	if err := s.post(ctx, "/v1/questions", req, &resp); err != nil {
		slog.Error("HTTPService GetQuestions failed", "error", err, "patientID", patientID)
		return nil, err
	}
	slog.Debug("HTTPService GetQuestions succeeded", "patientID", patientID, "questions", len(resp.Questions))
	return resp.Questions, nil
}

// Analyze implements Service.
func (s *HTTPService) Analyze(ctx context.Context, patientID string, symptoms []string, answers map[string]string) (*models.AnalysisResult, error) {
	if err := ValidateIntakeInput(patientID, symptoms); err != nil {
		return nil, err
	}
	req := models.AnalyzeRequest{PatientID: patientID, Symptoms: symptoms, Answers: answers}
	var result models.AnalysisResult
	if err := s.post(ctx, "/v1/analyze", req, &result); err != nil {
		slog.Error("HTTPService Analyze failed", "error", err, "patientID", patientID)
		return nil, err
	}
	slog.Debug("HTTPService Analyze succeeded", "patientID", patientID, "triage", result.TriageLevel)
	return &result, nil
}

// post sends a JSON request body and decodes a JSON response into out.
func (s *HTTPService) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("intake service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("intake service error: %s - %s", resp.Status, strings.TrimSpace(string(excerpt)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
