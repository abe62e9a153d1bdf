// Command triagecore is an interactive terminal client for the symptom
// intake flow. It drives the router and the text-modality intake engine
// against a configured intake backend, or against the OpenAI API when no
// backend is set.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mediflow/triagecore/internal/app"
	"github.com/mediflow/triagecore/internal/genai"
	"github.com/mediflow/triagecore/internal/intake"
	"github.com/mediflow/triagecore/internal/models"
	"github.com/mediflow/triagecore/internal/triage"
	"github.com/mediflow/triagecore/internal/util"
)

// Config holds environment configuration
type Config struct {
	APIBaseURL string
	OpenAIKey  string
	PatientID  string
	Debug      bool
}

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()

	symptomsFlag := flag.String("symptoms", "", "comma-separated symptom list (e.g. fever,cough)")
	apiFlag := flag.String("api", config.APIBaseURL, "base URL of the intake service")
	patientFlag := flag.String("patient", config.PatientID, "patient identifier")
	flag.Parse()

	svc, err := buildService(*apiFlag, config.OpenAIKey)
	if err != nil {
		slog.Error("No intake service available", "error", err)
		fmt.Fprintln(os.Stderr, "Set TRIAGE_API_URL or OPENAI_API_KEY to run the intake flow.")
		os.Exit(1)
	}

	core := app.New(svc, app.SpeechPorts{}, *patientFlag)
	core.FinishSplash()
	for _, s := range splitSymptoms(*symptomsFlag) {
		core.State().AddSymptom(s)
	}
	if len(core.State().Symptoms()) == 0 {
		if s := promptSymptoms(); s != "" {
			core.State().AddSymptom(s)
		}
	}

	runChat(core)
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("TRIAGECORE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
	return Config{
		APIBaseURL: os.Getenv("TRIAGE_API_URL"),
		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		PatientID:  os.Getenv("TRIAGE_PATIENT_ID"),
		Debug:      util.ParseBoolEnv("TRIAGECORE_DEBUG", false),
	}
}

// buildService picks the HTTP backend when configured, otherwise the
// GenAI-backed development service.
func buildService(apiBaseURL, openAIKey string) (triage.Service, error) {
	if apiBaseURL != "" {
		slog.Info("Using intake service", "url", apiBaseURL)
		return triage.NewHTTPService(apiBaseURL), nil
	}
	client, err := genai.NewClient(openAIKey)
	if err != nil {
		return nil, err
	}
	slog.Info("Using GenAI-backed intake service")
	return genai.NewService(client), nil
}

func splitSymptoms(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func promptSymptoms() string {
	fmt.Print("What symptom are you experiencing? ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// runChat drives the chat screen until analysis completes or the user quits.
func runChat(core *app.App) {
	printed := 0
	done := make(chan *models.AnalysisResult, 1)

	session := core.StartChat(func(snap intake.Snapshot) {
		for ; printed < len(snap.Transcript); printed++ {
			entry := snap.Transcript[printed]
			if entry.Speaker == models.SpeakerAssistant {
				fmt.Printf("assistant> %s\n", entry.Text)
			}
		}
		if snap.Notice != "" {
			fmt.Printf("! %s\n", snap.Notice)
		}
		if snap.State == intake.StateAnalysisComplete && snap.Result != nil {
			done <- snap.Result
		}
	})

	fmt.Println("Type your answers. Commands: /analyze, /back, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	input := make(chan string)
	go func() {
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	for {
		select {
		case result := <-done:
			printResult(result)
			return
		case line, ok := <-input:
			if !ok {
				return
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				return
			case "/back":
				if !core.Back() {
					fmt.Println("Already at the root screen.")
					return
				}
				fmt.Println("Left the chat screen.")
				return
			case "/analyze":
				session.Engine.RequestAnalysis()
			default:
				session.Engine.SubmitAnswer(line)
			}
		}
	}
}

func printResult(result *models.AnalysisResult) {
	fmt.Printf("\nTriage level: %d (severity %.2f)\n", result.TriageLevel, result.SeverityScore)
	fmt.Println(result.Report)
	for _, d := range result.PossibleDiseases {
		fmt.Printf("  - %s (%.0f%%)\n", d.Name, d.Probability*100)
	}
}
