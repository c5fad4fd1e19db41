// Package capture drives one microphone recording attempt at a time: device
// acquisition, live level metering, chunk collection, validation and the
// hand-off to transcription.
package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoospeak-interview/internal/audio"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateStopping   State = "stopping"
	StateFinalizing State = "finalizing"
	StateFailed     State = "failed"
)

// Transcriber turns a validated recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, p audio.Payload) (string, error)
}

type Options struct {
	Constraints   audio.Constraints
	ChunkInterval time.Duration
	MaxDuration   time.Duration
	MinBytes      int
	MaxBytes      int
	LevelInterval time.Duration
	Encoder       audio.Encoder

	// OnLevel receives every level reading while recording.
	OnLevel func(level float64)
	// OnStateChange is called after each transition, outside the controller lock.
	OnStateChange func(s State)
	// OnResult receives the outcome of an auto-stop.
	OnResult func(text string, err error)

	Logger *logrus.Logger
}

func DefaultOptions() Options {
	return Options{
		Constraints:   audio.DefaultConstraints(),
		ChunkInterval: 500 * time.Millisecond,
		MaxDuration:   30 * time.Second,
		MinBytes:      1000,
		MaxBytes:      3_000_000,
		LevelInterval: audio.DefaultFrameInterval,
		Encoder:       audio.WAVEncoder{},
	}
}

type Controller struct {
	dev  audio.Device
	tr   Transcriber
	opts Options
	log  *logrus.Logger

	// base context for auto-stop transcription; cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  State
	att    *attempt
	gen    uint64 // bumped by every StartListening and Abort
	closed bool
}

// attempt owns every resource of one recording.
type attempt struct {
	gen       uint64
	stream    audio.Stream
	analyser  *audio.Analyser
	level     *audio.LevelTask
	timer     *time.Timer
	format    audio.Format
	startedAt time.Time

	chunks chan [][]byte // collector result, buffered
	once   sync.Once

	// done is closed once finish has a result in text/err.
	done     chan struct{}
	doneOnce sync.Once
	text     string
	err      error
}

func (a *attempt) complete(text string, err error) (string, error) {
	a.doneOnce.Do(func() {
		a.text, a.err = text, err
		close(a.done)
	})
	return a.text, a.err
}

func New(dev audio.Device, tr Transcriber, opts Options) *Controller {
	def := DefaultOptions()
	if opts.Constraints == (audio.Constraints{}) {
		opts.Constraints = def.Constraints
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = def.ChunkInterval
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = def.MaxDuration
	}
	if opts.MinBytes <= 0 {
		opts.MinBytes = def.MinBytes
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.LevelInterval <= 0 {
		opts.LevelInterval = def.LevelInterval
	}
	if opts.Encoder == nil {
		opts.Encoder = def.Encoder
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		dev:    dev,
		tr:     tr,
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartListening acquires the input and begins recording.
func (c *Controller) StartListening(ctx context.Context) error {
	const op = "Capture.StartListening"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return utils.E(utils.CodeInvalidState, op, "capture is closed", nil)
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return utils.E(utils.CodeConflict, op, "a recording is already in progress", nil)
	}
	c.state = StateRequesting
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.notify(StateRequesting)

	stream, err := c.dev.Open(ctx, c.opts.Constraints)
	if err != nil {
		appErr := acquisitionError(op, err)
		c.fail(gen, nil, appErr)
		return appErr
	}

	att := &attempt{
		gen:       gen,
		stream:    stream,
		analyser:  audio.NewAnalyser(),
		format:    stream.Format(),
		startedAt: time.Now(),
		chunks:    make(chan [][]byte, 1),
		done:      make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		_ = stream.Close()
		return utils.E(utils.CodeInvalidState, op, "recording was aborted", nil)
	}
	c.att = att
	c.state = StateRecording
	att.level = audio.LevelMonitor{Interval: c.opts.LevelInterval}.Start(att.analyser, c.opts.OnLevel)
	data := make(chan []byte, 16)
	go att.read(data)
	go att.collect(data, c.opts.ChunkInterval)
	att.timer = time.AfterFunc(c.opts.MaxDuration, func() { c.autoStop(att) })
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"sample_rate": att.format.SampleRate,
		"channels":    att.format.Channels,
	}).Debug("capture started")
	c.notify(StateRecording)
	return nil
}

// StopListening ends the recording, validates it and returns the transcription.
// When the duration limit already stopped the recording, it waits for that
// result instead.
func (c *Controller) StopListening(ctx context.Context) (string, error) {
	const op = "Capture.StopListening"

	c.mu.Lock()
	att := c.att
	switch {
	case att != nil && (c.state == StateStopping || c.state == StateFinalizing):
		c.mu.Unlock()
		select {
		case <-att.done:
			return att.text, att.err
		case <-ctx.Done():
			return "", utils.E(utils.CodeTimeout, op, "recording was not finalized", ctx.Err())
		}
	case c.state != StateRecording || att == nil:
		st := c.state
		c.mu.Unlock()
		return "", utils.E(utils.CodeInvalidState, op, "not recording (state "+string(st)+")", nil)
	}
	c.state = StateStopping
	c.mu.Unlock()
	c.notify(StateStopping)

	return c.finish(ctx, att)
}

func (c *Controller) autoStop(att *attempt) {
	c.mu.Lock()
	if c.att != att || c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	c.mu.Unlock()

	c.log.WithField("max_duration", c.opts.MaxDuration.String()).Info("capture reached max duration, stopping")
	c.notify(StateStopping)

	text, err := c.finish(c.ctx, att)
	if c.opts.OnResult != nil {
		c.opts.OnResult(text, err)
	}
}

func (c *Controller) finish(ctx context.Context, att *attempt) (string, error) {
	const op = "Capture.Finalize"

	c.release(att)

	var chunks [][]byte
	select {
	case chunks = <-att.chunks:
	case <-ctx.Done():
		err := utils.E(utils.CodeTimeout, op, "recording was not finalized", ctx.Err())
		c.fail(att.gen, att, err)
		return att.complete("", err)
	}

	if c.transition(att.gen, StateFinalizing) {
		c.notify(StateFinalizing)
	}

	payload, err := c.aggregate(chunks, att.format)
	if err != nil {
		c.fail(att.gen, att, err)
		return att.complete("", err)
	}

	text, err := c.tr.Transcribe(ctx, payload)
	if err != nil {
		var ae *utils.AppError
		if !errors.As(err, &ae) {
			err = utils.E(utils.CodeTranscriptionFailed, op, "transcription failed", err)
		}
		c.fail(att.gen, att, err)
		return att.complete("", err)
	}

	c.mu.Lock()
	current := c.gen == att.gen
	if current {
		c.att = nil
		c.state = StateIdle
	}
	c.mu.Unlock()
	if current {
		c.notify(StateIdle)
	}
	return att.complete(text, nil)
}

// transition sets s only while gen is still the current attempt.
func (c *Controller) transition(gen uint64, s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.state = s
	return true
}

// aggregate joins the chunks into one encoded payload and validates it.
func (c *Controller) aggregate(chunks [][]byte, f audio.Format) (audio.Payload, error) {
	const op = "Capture.Validate"

	if len(chunks) == 0 {
		return audio.Payload{}, utils.E(utils.CodeEmptyRecording, op, "no audio chunks were captured", nil)
	}
	pcm := bytes.Join(chunks, nil)
	data := c.opts.Encoder.Encode(pcm, f)

	switch {
	case len(data) < c.opts.MinBytes:
		return audio.Payload{}, utils.E(utils.CodeTooShort, op, "recording is below the minimum size", nil)
	case len(data) > c.opts.MaxBytes:
		return audio.Payload{}, utils.E(utils.CodeTooLong, op, "recording exceeds the maximum size", nil)
	case !audio.IsAudioType(c.opts.Encoder.MediaType()):
		return audio.Payload{}, utils.E(utils.CodeUnsupportedFormat, op, "recording is not an audio type: "+c.opts.Encoder.MediaType(), nil)
	}

	var dur time.Duration
	if bps := f.BytesPerSecond(); bps > 0 {
		dur = time.Duration(len(pcm)) * time.Second / time.Duration(bps)
	}
	return audio.Payload{
		Data:      data,
		MediaType: c.opts.Encoder.MediaType(),
		Chunks:    len(chunks),
		Duration:  dur,
	}, nil
}

// release tears down the attempt's resources. Only the first call has effect.
func (c *Controller) release(att *attempt) {
	att.once.Do(func() {
		if att.timer != nil {
			att.timer.Stop()
		}
		att.level.Cancel()
		att.analyser.Close()
		if err := att.stream.Close(); err != nil {
			c.log.WithError(err).Warn("capture stream close failed")
		}
	})
}

// fail releases att (nil before acquisition) and, if gen is still current,
// reports the error through Failed and leaves the controller Idle for a retry.
func (c *Controller) fail(gen uint64, att *attempt, err error) {
	if att != nil {
		c.release(att)
	}
	c.log.WithError(err).WithField("code", utils.CodeOf(err)).Warn("capture failed")

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.att = nil
	c.state = StateFailed
	c.mu.Unlock()
	c.notify(StateFailed)

	if c.transition(gen, StateIdle) {
		c.notify(StateIdle)
	}
}

// Abort drops any live recording without transcribing it. A finalize already
// running for it keeps going but no longer touches the controller state.
func (c *Controller) Abort() {
	c.mu.Lock()
	att := c.att
	c.att = nil
	c.gen++
	changed := c.state != StateIdle
	c.state = StateIdle
	c.mu.Unlock()

	if att != nil {
		c.release(att)
	}
	if changed {
		c.notify(StateIdle)
	}
}

// Close aborts any live recording and rejects further attempts.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.Abort()
	return nil
}

func (c *Controller) notify(s State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

func (a *attempt) read(out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := a.stream.Read(buf)
		if n > 0 {
			b := make([]byte, n)
			copy(b, buf[:n])
			a.analyser.Write(b)
			out <- b
		}
		if err != nil {
			return
		}
	}
}

// collect cuts the incoming samples into chunks every interval. The remainder
// becomes the final chunk once the stream has drained.
func (a *attempt) collect(in <-chan []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var chunks [][]byte
	var pending bytes.Buffer
	flush := func() {
		if pending.Len() == 0 {
			return
		}
		chunks = append(chunks, append([]byte(nil), pending.Bytes()...))
		pending.Reset()
	}

	for {
		select {
		case b, ok := <-in:
			if !ok {
				flush()
				a.chunks <- chunks
				return
			}
			pending.Write(b)
		case <-ticker.C:
			flush()
		}
	}
}

func acquisitionError(op string, err error) error {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return utils.E(utils.CodePermissionDenied, op, "microphone permission denied", err)
	case errors.Is(err, audio.ErrDeviceBusy):
		return utils.E(utils.CodeDeviceBusy, op, "microphone is in use", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return utils.E(utils.CodeTimeout, op, "microphone request was abandoned", err)
	case errors.Is(err, audio.ErrDeviceNotFound), errors.Is(err, io.EOF):
		return utils.E(utils.CodeDeviceNotFound, op, "no microphone available", err)
	default:
		return utils.E(utils.CodeDeviceNotFound, op, "microphone could not be opened", err)
	}
}
