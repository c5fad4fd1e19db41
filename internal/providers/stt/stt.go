package stt

import (
	"context"
	"errors"
)

// Failure reasons a provider reports. Callers match them with errors.Is.
var (
	// ErrServiceUnavailable: no usable response from the network.
	ErrServiceUnavailable = errors.New("stt: service unavailable")
	// ErrEmptyResult: a response arrived but carried no transcription.
	ErrEmptyResult = errors.New("stt: empty result")
	// ErrTransport: the response could not be interpreted.
	ErrTransport = errors.New("stt: transport error")
)

type Provider interface {
	// Transcribe converts one self-describing audio payload into text.
	Transcribe(ctx context.Context, audio []byte, mediaType, language string) (text string, confidence float64, err error)
	Close() error
}

// Reason returns the failure reason sentinel wrapped in err, or ErrTransport
// for anything unclassified.
func Reason(err error) error {
	switch {
	case errors.Is(err, ErrServiceUnavailable):
		return ErrServiceUnavailable
	case errors.Is(err, ErrEmptyResult):
		return ErrEmptyResult
	default:
		return ErrTransport
	}
}
