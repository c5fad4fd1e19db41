package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Playable is a resolved, locally playable reference: a remote URL or a file path.
type Playable struct {
	Location  string
	MediaType string
}

// IsRemote reports whether the playable points at an http(s) URL.
func (p Playable) IsRemote() bool {
	return strings.HasPrefix(p.Location, "http://") || strings.HasPrefix(p.Location, "https://")
}

// Output is the speaker side: it prepares tracks for playback.
type Output interface {
	// Load returns once the source is ready to play.
	Load(ctx context.Context, p Playable) (Track, error)
}

// Track is one loaded source on the output device.
type Track interface {
	// Play starts playback and returns immediately.
	Play() error
	// Done is closed when playback ended, failed or was stopped.
	Done() <-chan struct{}
	// Err reports why playback ended; nil for a natural end or Stop.
	Err() error
	// Stop halts playback and releases the track. Safe to call more than once.
	Stop() error
}

// ExecOutput plays tracks through an external player such as ffplay.
type ExecOutput struct {
	Command string
	Args    []string // placed before the location
}

func NewExecOutput(command string) *ExecOutput {
	if command == "" {
		command = "ffplay"
	}
	out := &ExecOutput{Command: command}
	if command == "ffplay" {
		out.Args = []string{"-nodisp", "-autoexit", "-loglevel", "error"}
	}
	return out
}

func (o *ExecOutput) Load(ctx context.Context, p Playable) (Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Location == "" {
		return nil, errors.New("audio: empty playable location")
	}
	if !p.IsRemote() {
		if _, err := os.Stat(p.Location); err != nil {
			return nil, fmt.Errorf("audio: load %s: %w", p.Location, err)
		}
	}
	if _, err := exec.LookPath(o.Command); err != nil {
		return nil, fmt.Errorf("audio: player %q: %w", o.Command, err)
	}
	args := append(append([]string{}, o.Args...), p.Location)
	return &execTrack{cmd: exec.Command(o.Command, args...), done: make(chan struct{})}, nil
}

type execTrack struct {
	cmd *exec.Cmd

	mu      sync.Mutex
	started bool
	stopped bool
	err     error
	done    chan struct{}
	once    sync.Once
}

func (t *execTrack) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return errors.New("audio: track stopped")
	}
	if t.started {
		return nil
	}
	if err := t.cmd.Start(); err != nil {
		return err
	}
	t.started = true
	go func() {
		err := t.cmd.Wait()
		t.mu.Lock()
		if !t.stopped {
			t.err = err
		}
		t.mu.Unlock()
		t.finish()
	}()
	return nil
}

func (t *execTrack) Done() <-chan struct{} { return t.done }

func (t *execTrack) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *execTrack) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	started := t.started
	t.mu.Unlock()

	if started && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		<-t.done
		return nil
	}
	t.finish()
	return nil
}

func (t *execTrack) finish() { t.once.Do(func() { close(t.done) }) }
