package services

import (
	"context"

	"github.com/yoockh/yoospeak-interview/internal/audio"
	"github.com/yoockh/yoospeak-interview/internal/providers/stt"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type TranscriptionService interface {
	Transcribe(ctx context.Context, p audio.Payload) (string, error)
}

type transcriptionService struct {
	provider stt.Provider
	language string
}

func NewTranscriptionService(provider stt.Provider, language string) TranscriptionService {
	if language == "" {
		language = "en-US"
	}
	return &transcriptionService{provider: provider, language: language}
}

// Transcribe makes exactly one attempt; the caller re-records on failure.
func (s *transcriptionService) Transcribe(ctx context.Context, p audio.Payload) (string, error) {
	const op = "TranscriptionService.Transcribe"

	if len(p.Data) == 0 {
		return "", utils.E(utils.CodeEmptyRecording, op, "payload is empty", nil)
	}

	text, _, err := s.provider.Transcribe(ctx, p.Data, p.MediaType, s.language)
	if err != nil {
		reason := stt.Reason(err)
		return "", utils.E(utils.CodeTranscriptionFailed, op, reason.Error(), err)
	}
	return text, nil
}
