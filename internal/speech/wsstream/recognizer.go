// Package wsstream implements speech.Recognizer against a websocket
// streaming transcription endpoint.
package wsstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Config controls the streaming endpoint connection.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
}

// Recognizer dials one websocket session per Listen call and returns the
// first final transcript the provider emits.
type Recognizer struct {
	cfg Config

	mu      sync.Mutex
	current *websocket.Conn
}

// NewRecognizer validates the configuration and returns a recognizer.
func NewRecognizer(cfg Config) (*Recognizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("speech API key is not configured")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("speech API base URL is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Recognizer{cfg: cfg}, nil
}

// Listen opens a streaming session and blocks until the provider reports a
// final transcript, an error, or the context is cancelled. An empty final
// transcript is returned as "" with a nil error; the caller treats it as a
// no-submission outcome.
func (r *Recognizer) Listen(ctx context.Context) (string, error) {
	wsURL, err := listenURL(r.cfg)
	if err != nil {
		return "", err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to speech endpoint: %w", err)
	}

	r.mu.Lock()
	r.current = conn
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		if r.current == conn {
			r.current = nil
		}
		r.mu.Unlock()
		_ = conn.Close()
	}()

	// Close the connection when the context ends so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return "", nil
			}
			return "", fmt.Errorf("failed to read speech event: %w", err)
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "speech endpoint returned an unknown error"
			}
			return "", errors.New(message)
		}

		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		transcript := extractTranscript(response)
		slog.Debug("Recognizer final transcript", "length", len(transcript))
		return transcript, nil
	}
}

// Stop aborts an in-progress Listen by closing its connection.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	conn := r.current
	r.current = nil
	r.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
}

func listenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid speech API base URL: %w", err)
	}

	query := u.Query()
	query.Set("model", cfg.Model)
	query.Set("interim_results", "false")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
