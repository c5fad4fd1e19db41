package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPService talks to a transcription endpoint that accepts the raw payload
// (Content-Type = payload media type) and answers {"transcription": "..."}.
type HTTPService struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
}

func NewHTTPService(endpoint, apiKey string, timeout time.Duration) *HTTPService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPService{
		HTTPClient: &http.Client{Timeout: timeout},
		Endpoint:   endpoint,
		APIKey:     apiKey,
	}
}

func (s *HTTPService) Close() error { return nil }

type transcriptionResponse struct {
	Transcription *string `json:"transcription"`
	Confidence    float64 `json:"confidence"`
}

func (s *HTTPService) Transcribe(ctx context.Context, audio []byte, mediaType, language string) (string, float64, error) {
	if s.Endpoint == "" {
		return "", 0, fmt.Errorf("%w: transcription endpoint not configured", ErrServiceUnavailable)
	}

	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("%w: bad endpoint: %v", ErrTransport, err)
	}
	if language != "" {
		q := u.Query()
		q.Set("language", language)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(audio))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("%w: read body: %v", ErrServiceUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return "", 0, fmt.Errorf("%w: status=%d", ErrServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("%w: status=%d body=%s", ErrTransport, resp.StatusCode, string(body))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("%w: decode: %v", ErrTransport, err)
	}
	if tr.Transcription == nil || strings.TrimSpace(*tr.Transcription) == "" {
		return "", 0, ErrEmptyResult
	}
	return strings.TrimSpace(*tr.Transcription), tr.Confidence, nil
}
