// Package genai provides a GenAI-backed implementation of the intake
// service boundary using the OpenAI API.
//
// It serves development and demo setups without a triage backend: follow-up
// questions and the analysis report are generated by the model instead of
// the remote service, behind the same triage.Service interface.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mediflow/triagecore/internal/models"
	"github.com/mediflow/triagecore/internal/triage"
)

const questionsSystemPrompt = `You are a medical intake assistant. Given a list of symptoms, produce 3 to 5 short follow-up questions a triage nurse would ask. Respond with a JSON array of strings and nothing else.`

const analysisSystemPrompt = `You are a medical triage assistant. Given symptoms and intake answers, respond with a JSON object:
{"triage": <1-4, 1 most urgent>, "severityScore": <0.0-1.0>, "report": "<short plain-language summary>", "possibleDiseases": [{"name": "...", "probability": <0.0-1.0>}]}
Respond with the JSON object and nothing else. This is informational, not a diagnosis.`

// ClientInterface defines the chat operations the service needs, so tests
// can substitute a mock.
type ClientInterface interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// NewClient initializes a GenAI client with the given API key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// GenerateWithMessages runs one chat completion and returns the text content.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Service implements triage.Service on top of a chat model.
type Service struct {
	client ClientInterface
}

// NewService creates a GenAI-backed intake service.
func NewService(client ClientInterface) *Service {
	return &Service{client: client}
}

// GetQuestions generates follow-up questions for the symptom set.
func (s *Service) GetQuestions(ctx context.Context, patientID string, symptoms []string) ([]string, error) {
	if err := triage.ValidateIntakeInput(patientID, symptoms); err != nil {
		return nil, err
	}
	userPrompt := fmt.Sprintf("Symptoms: %s", strings.Join(symptoms, ", "))
	response, err := s.client.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(questionsSystemPrompt),
		openai.UserMessage(userPrompt),
	})
	if err != nil {
		slog.Error("genai Service GetQuestions failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	var questions []string
	if err := json.Unmarshal([]byte(extractJSON(response)), &questions); err != nil {
		slog.Warn("genai Service could not parse question list", "error", err)
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}
	slog.Debug("genai Service generated questions", "count", len(questions))
	return questions, nil
}

// Analyze generates a triage assessment from the intake answers.
func (s *Service) Analyze(ctx context.Context, patientID string, symptoms []string, answers map[string]string) (*models.AnalysisResult, error) {
	if err := triage.ValidateIntakeInput(patientID, symptoms); err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Symptoms: %s\nAnswers:\n", strings.Join(symptoms, ", "))
	for slot, answer := range answers {
		fmt.Fprintf(&sb, "- %s: %s\n", slot, answer)
	}

	response, err := s.client.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(analysisSystemPrompt),
		openai.UserMessage(sb.String()),
	})
	if err != nil {
		slog.Error("genai Service Analyze failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(extractJSON(response)), &result); err != nil {
		slog.Warn("genai Service could not parse analysis", "error", err)
		return nil, fmt.Errorf("failed to parse generated analysis: %w", err)
	}
	return &result, nil
}

// extractJSON strips markdown code fences the model sometimes wraps around
// JSON payloads.
func extractJSON(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
