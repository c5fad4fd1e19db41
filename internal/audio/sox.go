package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SoxDevice captures from the default system input with sox's `rec`,
// reading raw PCM16LE from its stdout. Voice processing constraints are not
// available through sox and are ignored.
type SoxDevice struct {
	Command      string        // default "rec"
	ReadyTimeout time.Duration // how long to wait for the first samples
}

func NewSoxDevice(command string) *SoxDevice {
	if command == "" {
		command = "rec"
	}
	return &SoxDevice{Command: command, ReadyTimeout: 3 * time.Second}
}

func (d *SoxDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}

	cmd := exec.Command(d.Command,
		"-q",
		"-t", "raw",
		"-e", "signed-integer",
		"-b", "16",
		"-c", strconv.Itoa(c.Channels),
		"-r", strconv.Itoa(c.SampleRate),
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		case errors.Is(err, os.ErrPermission):
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, err
	}

	br := bufio.NewReaderSize(stdout, 8192)
	ready := make(chan error, 1)
	go func() {
		_, err := br.Peek(2)
		ready <- err
	}()

	timeout := d.ReadyTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			_ = cmd.Wait()
			return nil, classifyCaptureFailure(stderr.String())
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, ctx.Err()
	case <-timer.C:
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: no samples within %s", ErrDeviceNotFound, timeout)
	}

	return &soxStream{
		cmd:    cmd,
		r:      br,
		format: Format{SampleRate: c.SampleRate, Channels: c.Channels},
	}, nil
}

// classifyCaptureFailure maps the recorder's diagnostics to an acquisition error.
func classifyCaptureFailure(stderr string) error {
	msg := strings.TrimSpace(stderr)
	low := strings.ToLower(msg)
	switch {
	case strings.Contains(low, "permission denied"), strings.Contains(low, "not permitted"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	case strings.Contains(low, "busy"), strings.Contains(low, "in use"):
		return fmt.Errorf("%w: %s", ErrDeviceBusy, msg)
	default:
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, msg)
	}
}

type soxStream struct {
	cmd    *exec.Cmd
	r      io.Reader
	format Format

	once sync.Once
}

func (s *soxStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *soxStream) Format() Format { return s.format }

func (s *soxStream) Close() error {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		// killed on purpose; the exit status is not interesting
		_ = s.cmd.Wait()
	})
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
