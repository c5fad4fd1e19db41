package stt

import (
	"context"
	"fmt"
	"mime"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type GoogleSpeech struct {
	c *speech.Client

	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c, SampleRateHz: 16000}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// encodingFor picks the recognizer encoding for a payload media type.
// WAV and FLAC carry their own header, so the encoding and rate are left for
// the service to read from it.
func encodingFor(mediaType string, rate int32) (speechpb.RecognitionConfig_AudioEncoding, int32, error) {
	mt, params, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return 0, 0, err
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/flac":
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0, nil
	case "audio/l16":
		if r := params["rate"]; r != "" {
			var n int32
			if _, err := fmt.Sscanf(r, "%d", &n); err == nil && n > 0 {
				rate = n
			}
		}
		return speechpb.RecognitionConfig_LINEAR16, rate, nil
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, 48000, nil
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS, 48000, nil
	case "audio/mpeg", "audio/mp3":
		return speechpb.RecognitionConfig_MP3, rate, nil
	}
	return 0, 0, fmt.Errorf("unsupported media type %q", mediaType)
}

// language example: "en-US", "id-ID"
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, mediaType, language string) (string, float64, error) {
	if language == "" {
		language = "en-US"
	}

	enc, rate, err := encodingFor(mediaType, g.SampleRateHz)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   enc,
			SampleRateHertz:            rate,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Canceled:
			return "", 0, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return "", 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp == nil {
		return "", 0, ErrEmptyResult
	}

	var parts []string
	var confSum float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		best := r.Alternatives[0]
		for _, alt := range r.Alternatives[1:] {
			if alt.Confidence > best.Confidence {
				best = alt
			}
		}
		if t := strings.TrimSpace(best.Transcript); t != "" {
			parts = append(parts, t)
			confSum += float64(best.Confidence)
		}
	}
	if len(parts) == 0 {
		return "", 0, ErrEmptyResult
	}
	return strings.Join(parts, " "), confSum / float64(len(parts)), nil
}
