// Package httptts implements speech.Synthesizer against an HTTP
// text-to-speech service. Audio playback is the platform's concern; a 2xx
// response is the completion signal.
package httptts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Synthesizer posts text to a TTS endpoint and waits for the response.
type Synthesizer struct {
	endpoint   string
	httpClient *http.Client
}

// NewSynthesizer creates a client for the TTS service at endpoint.
func NewSynthesizer(endpoint string) (*Synthesizer, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("TTS endpoint is not configured")
	}
	return &Synthesizer{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type ttsRequest struct {
	Text string `json:"text"`
}

// Speak implements speech.Synthesizer.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	payload, err := json.Marshal(ttsRequest{Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("TTS API error: %s - %s", resp.Status, string(respBody))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
