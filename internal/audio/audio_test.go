package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func sinePCM(samples int, freq, amp float64) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/16000)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}

func TestAnalyser_SilenceIsZero(t *testing.T) {
	a := NewAnalyser()
	a.Write(make([]byte, fftSize*2))
	bins := make([]byte, FrequencyBins)
	if !a.ByteFrequencyData(bins) {
		t.Fatalf("expected data from open analyser")
	}
	if got := Level(bins); got != 0 {
		t.Fatalf("silence level = %f, want 0", got)
	}
}

func TestAnalyser_ToneRaisesLevel(t *testing.T) {
	a := NewAnalyser()
	bins := make([]byte, FrequencyBins)
	pcm := sinePCM(fftSize, 440, 0.9)
	// let smoothing settle
	for i := 0; i < 20; i++ {
		a.Write(pcm)
		a.ByteFrequencyData(bins)
	}
	if got := Level(bins); got <= 0 {
		t.Fatalf("tone level = %f, want > 0", got)
	}
}

func TestAnalyser_ClosedReturnsFalse(t *testing.T) {
	a := NewAnalyser()
	a.Close()
	a.Close()
	a.Write([]byte{1, 2, 3, 4})
	if a.ByteFrequencyData(make([]byte, FrequencyBins)) {
		t.Fatalf("closed analyser must not produce data")
	}
}

func TestLevel_NotClamped(t *testing.T) {
	bins := make([]byte, FrequencyBins)
	for i := range bins {
		bins[i] = 255
	}
	if got := Level(bins); got <= 1.9 || got >= 2.0 {
		t.Fatalf("full scale level = %f, want just under 2", got)
	}
}

func TestLevelMonitor_NoReadingAfterCancel(t *testing.T) {
	a := NewAnalyser()
	var readings int64
	var cancelled atomic.Bool
	var late atomic.Bool

	task := LevelMonitor{Interval: time.Millisecond}.Start(a, func(float64) {
		if cancelled.Load() {
			late.Store(true)
		}
		atomic.AddInt64(&readings, 1)
	})

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&readings) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	task.Cancel()
	cancelled.Store(true)
	task.Cancel() // idempotent

	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt64(&readings) < 3 {
		t.Fatalf("expected readings before cancel")
	}
	if late.Load() {
		t.Fatalf("reading delivered after Cancel returned")
	}
}

func TestLevelMonitor_StopsWhenAnalyserClosed(t *testing.T) {
	a := NewAnalyser()
	task := LevelMonitor{Interval: time.Millisecond}.Start(a, nil)
	a.Close()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatalf("monitor kept running after analyser close")
	}
}

func TestWAVEncoder_Header(t *testing.T) {
	pcm := make([]byte, 3200)
	out := WAVEncoder{}.Encode(pcm, Format{SampleRate: 16000, Channels: 1})
	if len(out) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), 44+len(pcm))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Fatalf("bad header %q", out[:44])
	}
	if rate := binary.LittleEndian.Uint32(out[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d", rate)
	}
}

func TestIsAudioType(t *testing.T) {
	cases := map[string]bool{
		"audio/wav":              true,
		"audio/webm;codecs=opus": true,
		" Audio/OGG ":            true,
		"audio/":                 false,
		"video/webm":             false,
		"":                       false,
	}
	for in, want := range cases {
		if got := IsAudioType(in); got != want {
			t.Fatalf("IsAudioType(%q) = %v, want %v", in, got, want)
		}
	}
}

type stubStream struct {
	closes int32
}

func (s *stubStream) Read(p []byte) (int, error) { return 0, errors.New("closed") }
func (s *stubStream) Format() Format             { return Format{SampleRate: 16000, Channels: 1} }
func (s *stubStream) Close() error               { atomic.AddInt32(&s.closes, 1); return nil }

type stubDevice struct {
	mu      sync.Mutex
	streams []*stubStream
}

func (d *stubDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &stubStream{}
	d.streams = append(d.streams, s)
	return s, nil
}

func TestExclusive_SecondOpenIsBusy(t *testing.T) {
	dev := &stubDevice{}
	ex := Exclusive(dev)

	first, err := ex.Open(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := ex.Open(context.Background(), DefaultConstraints()); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second open err = %v, want ErrDeviceBusy", err)
	}

	_ = first.Close()
	_ = first.Close()
	if n := atomic.LoadInt32(&dev.streams[0].closes); n != 1 {
		t.Fatalf("underlying stream closed %d times", n)
	}

	again, err := ex.Open(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("open after release: %v", err)
	}
	_ = again.Close()
}

func TestClassifyCaptureFailure(t *testing.T) {
	cases := []struct {
		stderr string
		want   error
	}{
		{"rec FAIL formats: can't open input `default': Permission denied", ErrPermissionDenied},
		{"rec FAIL: Device or resource busy", ErrDeviceBusy},
		{"rec FAIL formats: can't open input `default': no default audio device configured", ErrDeviceNotFound},
		{"", ErrDeviceNotFound},
	}
	for _, tc := range cases {
		if got := classifyCaptureFailure(tc.stderr); !errors.Is(got, tc.want) {
			t.Fatalf("classify(%q) = %v, want %v", tc.stderr, got, tc.want)
		}
	}
}
