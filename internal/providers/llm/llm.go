package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned by Complete when the stream produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental).
	StreamAnswer(ctx context.Context, prompt string) (chunks <-chan string, errs <-chan error)
	Close() error
}

// Complete drains StreamAnswer into one trimmed string.
func Complete(ctx context.Context, p Provider, prompt string) (string, error) {
	chunks, errs := p.StreamAnswer(ctx, prompt)

	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	// errs is closed after chunks by every provider
	for err := range errs {
		if err != nil {
			return "", err
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
