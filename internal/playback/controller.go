// Package playback owns the speaker: at most one synthesized utterance is
// loading or playing at any time.
package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoospeak-interview/internal/audio"
	"github.com/yoockh/yoospeak-interview/internal/providers/tts"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StateEnded   State = "ended"
	StateFailed  State = "failed"
)

// Synthesizer produces resolved speech for text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (tts.Speech, error)
}

type Options struct {
	// TempDir holds decoded speech blobs; os.TempDir() when empty.
	TempDir       string
	OnStateChange func(s State)
	Logger        *logrus.Logger
}

type Controller struct {
	synth Synthesizer
	out   audio.Output
	opts  Options
	log   *logrus.Logger

	speakMu sync.Mutex // one Speak runs at a time

	mu       sync.Mutex
	state    State
	live     *session
	gen      uint64
	inflight context.CancelFunc
	closed   bool
}

// session is one loaded track plus the blob file backing it, if any.
type session struct {
	id     string
	track  audio.Track
	blob   string
	detach chan struct{}
	once   sync.Once
}

func New(synth Synthesizer, out audio.Output, opts Options) *Controller {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Controller{
		synth: synth,
		out:   out,
		opts:  opts,
		log:   opts.Logger,
		state: StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Speak synthesizes text and returns once playback has started. A Speak that
// is still synthesizing or loading is superseded by a newer one, and the
// live utterance is torn down before the new one loads.
func (c *Controller) Speak(ctx context.Context, text string) error {
	const op = "Playback.Speak"

	if strings.TrimSpace(text) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "nothing to speak", nil)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return utils.E(utils.CodeInvalidState, op, "playback is closed", nil)
	}
	if c.inflight != nil {
		c.inflight()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.inflight = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.gen == gen {
			c.inflight = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	c.speakMu.Lock()
	defer c.speakMu.Unlock()

	if ctx.Err() != nil {
		return superseded(op, ctx.Err())
	}

	c.teardown()
	c.setState(StateLoading)

	speech, err := c.synth.Synthesize(ctx, text)
	if ctx.Err() != nil {
		c.abandon(gen)
		return superseded(op, ctx.Err())
	}
	if err != nil || speech == nil {
		c.setState(StateFailed)
		if err == nil {
			err = tts.ErrNoAudio
		}
		if utils.IsCode(err, utils.CodeSynthesisFailed) {
			return err
		}
		return utils.E(utils.CodeSynthesisFailed, op, "speech synthesis returned nothing playable", err)
	}

	playable, blob, err := c.resolve(speech)
	if err != nil {
		c.setState(StateFailed)
		return utils.E(utils.CodeSynthesisFailed, op, "synthesized speech could not be prepared", err)
	}

	track, err := c.out.Load(ctx, playable)
	if err == nil && ctx.Err() != nil {
		_ = track.Stop()
		err = ctx.Err()
	}
	if err == nil {
		err = track.Play()
		if err != nil {
			_ = track.Stop()
		}
	}
	if err != nil {
		removeBlob(blob)
		if ctx.Err() != nil {
			c.abandon(gen)
			return superseded(op, ctx.Err())
		}
		c.setState(StateFailed)
		c.log.WithError(err).WithField("location", playable.Location).Warn("speech playback failed to start")
		return utils.E(utils.CodeUnavailable, op, "speech could not be played", err)
	}

	sess := &session{
		id:     uuid.NewString(),
		track:  track,
		blob:   blob,
		detach: make(chan struct{}),
	}
	c.mu.Lock()
	c.live = sess
	c.state = StatePlaying
	c.mu.Unlock()
	c.notify(StatePlaying)

	go c.watch(sess)

	c.log.WithField("playback_id", sess.id).Debug("speech playing")
	return nil
}

// Stop cancels a pending Speak and tears down the live utterance. The
// controller is Idle afterwards unless a newer Speak has already begun.
func (c *Controller) Stop() {
	c.mu.Lock()
	pending := c.inflight != nil
	if pending {
		c.inflight()
	}
	loading := c.state == StateLoading
	c.mu.Unlock()

	if c.teardown() || pending || loading {
		c.setState(StateIdle)
	}
}

// abandon returns a cancelled Speak's Loading state to Idle when no newer
// Speak has taken over.
func (c *Controller) abandon(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()
	c.notify(StateIdle)
}

func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Stop()
	return nil
}

// watch waits for the track to finish unless the session is detached first.
func (c *Controller) watch(sess *session) {
	select {
	case <-sess.track.Done():
	case <-sess.detach:
		return
	}

	c.mu.Lock()
	if c.live != sess {
		c.mu.Unlock()
		return
	}
	c.live = nil
	err := sess.track.Err()
	next := StateEnded
	if err != nil {
		next = StateFailed
	}
	c.state = next
	c.mu.Unlock()

	c.release(sess)
	if err != nil {
		c.log.WithError(err).WithField("playback_id", sess.id).Warn("speech playback failed")
	}
	c.notify(next)
}

// teardown releases the live session, reporting whether there was one.
func (c *Controller) teardown() bool {
	c.mu.Lock()
	sess := c.live
	c.live = nil
	c.mu.Unlock()
	if sess == nil {
		return false
	}
	c.release(sess)
	return true
}

// release detaches the watcher, stops the track and removes the blob. Only the
// first call has effect.
func (c *Controller) release(sess *session) {
	sess.once.Do(func() {
		close(sess.detach)
		if err := sess.track.Stop(); err != nil {
			c.log.WithError(err).Debug("track stop failed")
		}
		removeBlob(sess.blob)
	})
}

// resolve turns speech into something the output can load. Inline and encoded
// speech is written to a blob file owned by the session.
func (c *Controller) resolve(s tts.Speech) (audio.Playable, string, error) {
	switch v := s.(type) {
	case tts.RemoteURL:
		return audio.Playable{Location: v.URL}, "", nil
	case tts.InlineData:
		return c.writeBlob(v.MediaType, v.Data)
	case tts.EncodedPayload:
		return c.writeBlob(v.MediaType, v.Data)
	default:
		return audio.Playable{}, "", fmt.Errorf("unknown speech %T", s)
	}
}

func (c *Controller) writeBlob(mediaType string, data []byte) (audio.Playable, string, error) {
	if len(data) == 0 {
		return audio.Playable{}, "", tts.ErrNoAudio
	}
	name := filepath.Join(c.opts.TempDir, "speech-"+uuid.NewString()+extension(mediaType))
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return audio.Playable{}, "", err
	}
	return audio.Playable{Location: name, MediaType: mediaType}, name, nil
}

func extension(mediaType string) string {
	mt, _, _ := strings.Cut(strings.ToLower(mediaType), ";")
	switch strings.TrimSpace(mt) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	case "audio/flac":
		return ".flac"
	default:
		return ".audio"
	}
}

func removeBlob(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

func superseded(op string, err error) error {
	return utils.E(utils.CodeConflict, op, "superseded by a newer request", err)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify(s)
}

func (c *Controller) notify(s State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}
