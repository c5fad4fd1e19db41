package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPService posts {"text": ...} to a synthesis endpoint.
type HTTPService struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Voice      string
}

func NewHTTPService(endpoint, apiKey, voice string, timeout time.Duration) *HTTPService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPService{
		HTTPClient: &http.Client{Timeout: timeout},
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Voice:      voice,
	}
}

type synthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// synthesisResponse accepts the field spellings synthesis services commonly use.
type synthesisResponse struct {
	URL          string `json:"url"`
	AudioURL     string `json:"audioUrl"`
	Audio        string `json:"audio"`
	AudioContent string `json:"audioContent"`
	MediaType    string `json:"mediaType"`
	ContentType  string `json:"contentType"`
}

func (s *HTTPService) Synthesize(ctx context.Context, text string) (*Result, error) {
	if s.Endpoint == "" {
		return nil, fmt.Errorf("tts: synthesis endpoint not configured")
	}
	body, _ := json.Marshal(synthesisRequest{Text: text, Voice: s.Voice})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts: status=%d body=%s", resp.StatusCode, string(b))
	}

	var sr synthesisResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("tts: decode: %w", err)
	}

	r := &Result{URL: firstNonEmpty(sr.URL, sr.AudioURL), Audio: firstNonEmpty(sr.Audio, sr.AudioContent), MediaType: firstNonEmpty(sr.MediaType, sr.ContentType)}
	if r.URL == "" && r.Audio == "" {
		return nil, ErrNoAudio
	}
	return r, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
