// Package audio holds the device-facing pieces of the practice agent: input
// acquisition, the frequency analyser behind the level meter, encoders for
// recorded payloads, and playback outputs.
package audio

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// Acquisition failures reported by Device implementations.
var (
	ErrPermissionDenied = errors.New("audio: permission denied")
	ErrDeviceNotFound   = errors.New("audio: no input device")
	ErrDeviceBusy       = errors.New("audio: device busy")
)

// Constraints describe the requested input.
type Constraints struct {
	Channels         int
	SampleRate       int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints is mono 16 kHz with all voice processing enabled.
func DefaultConstraints() Constraints {
	return Constraints{
		Channels:         1,
		SampleRate:       16000,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Format is the negotiated PCM format of a Stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond assumes signed 16-bit little-endian samples.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Stream is an acquired live input yielding PCM16LE.
// Close must unblock a pending Read.
type Stream interface {
	io.Reader
	Format() Format
	Close() error
}

// Device acquires input streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Payload is one aggregated recording ready for transcription.
type Payload struct {
	Data      []byte
	MediaType string
	Chunks    int
	Duration  time.Duration
}

// IsAudioType reports whether mediaType declares an audio/* type.
func IsAudioType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	return strings.HasPrefix(mt, "audio/") && len(mt) > len("audio/")
}

// Exclusive wraps a Device so at most one stream is open at a time.
// A second Open fails with ErrDeviceBusy until the first stream is closed.
func Exclusive(d Device) Device {
	return &exclusiveDevice{dev: d}
}

type exclusiveDevice struct {
	dev  Device
	mu   sync.Mutex
	busy bool
}

func (e *exclusiveDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, ErrDeviceBusy
	}
	e.busy = true
	e.mu.Unlock()

	s, err := e.dev.Open(ctx, c)
	if err != nil {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
		return nil, err
	}
	return &exclusiveStream{Stream: s, owner: e}, nil
}

type exclusiveStream struct {
	Stream
	owner *exclusiveDevice
	once  sync.Once
}

func (s *exclusiveStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Stream.Close()
		s.owner.mu.Lock()
		s.owner.busy = false
		s.owner.mu.Unlock()
	})
	return err
}
