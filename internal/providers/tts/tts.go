// Package tts adapts speech synthesis services and resolves what they return
// into a single tagged Speech value.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoAudio is returned when a synthesis result carries nothing playable.
var ErrNoAudio = errors.New("tts: result has no audio")

type Provider interface {
	Synthesize(ctx context.Context, text string) (*Result, error)
}

// Result is the raw synthesis response. Exactly one of URL or Audio is
// expected to be set; URL may be a remote address or a data URI and Audio
// may be base64 or a data URI.
type Result struct {
	URL       string `json:"url,omitempty"`
	Audio     string `json:"audio,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Speech is a resolved synthesis result: RemoteURL, InlineData or EncodedPayload.
type Speech interface {
	speech()
}

// RemoteURL is speech hosted by the synthesis service.
type RemoteURL struct {
	URL string
}

// InlineData is speech delivered as a data URI.
type InlineData struct {
	MediaType string
	Data      []byte
}

// EncodedPayload is speech delivered as bare base64 bytes.
type EncodedPayload struct {
	MediaType string
	Data      []byte
}

func (RemoteURL) speech()      {}
func (InlineData) speech()     {}
func (EncodedPayload) speech() {}

const defaultMediaType = "audio/mpeg"

// Resolve classifies r once. Callers switch on the returned type and never
// look at the raw strings again.
func Resolve(r *Result) (Speech, error) {
	if r == nil {
		return nil, ErrNoAudio
	}
	if ref := strings.TrimSpace(r.URL); ref != "" {
		if strings.HasPrefix(ref, "data:") {
			return decodeDataURI(ref)
		}
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("tts: unplayable url %q", ref)
		}
		return RemoteURL{URL: ref}, nil
	}
	if raw := strings.TrimSpace(r.Audio); raw != "" {
		if strings.HasPrefix(raw, "data:") {
			return decodeDataURI(raw)
		}
		b, err := decodeBase64(raw)
		if err != nil {
			return nil, fmt.Errorf("tts: decode payload: %w", err)
		}
		if len(b) == 0 {
			return nil, ErrNoAudio
		}
		mt := r.MediaType
		if mt == "" {
			mt = defaultMediaType
		}
		return EncodedPayload{MediaType: mt, Data: b}, nil
	}
	return nil, ErrNoAudio
}

func decodeDataURI(s string) (Speech, error) {
	rest := strings.TrimPrefix(s, "data:")
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("tts: malformed data uri")
	}
	isBase64 := strings.HasSuffix(meta, ";base64")
	meta = strings.TrimSuffix(meta, ";base64")
	mt, _, _ := strings.Cut(meta, ";")
	if mt == "" {
		mt = defaultMediaType
	}

	var b []byte
	if isBase64 {
		decoded, err := decodeBase64(data)
		if err != nil {
			return nil, fmt.Errorf("tts: decode data uri: %w", err)
		}
		b = decoded
	} else {
		unescaped, err := url.PathUnescape(data)
		if err != nil {
			return nil, fmt.Errorf("tts: decode data uri: %w", err)
		}
		b = []byte(unescaped)
	}
	if len(b) == 0 {
		return nil, ErrNoAudio
	}
	return InlineData{MediaType: mt, Data: b}, nil
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
