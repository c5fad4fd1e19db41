package interview

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoospeak-interview/internal/audio"
	"github.com/yoockh/yoospeak-interview/internal/capture"
	"github.com/yoockh/yoospeak-interview/internal/events"
	"github.com/yoockh/yoospeak-interview/internal/playback"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

// ManagerConfig wires the devices and services shared by every session.
type ManagerConfig struct {
	Device      audio.Device
	Transcriber capture.Transcriber
	Capture     capture.Options

	Synthesizer playback.Synthesizer
	Output      audio.Output
	Playback    playback.Options

	// Session dependencies; Speaker and Recorder are filled in by the manager.
	Session Deps
}

// Manager drives at most one interview session and owns the microphone and
// speaker on its behalf. Opening a session closes the previous one.
type Manager struct {
	capture  *capture.Controller
	playback *playback.Controller
	deps     Deps
	pub      events.Publisher
	log      *logrus.Logger

	mu     sync.Mutex
	active *Controller
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{deps: cfg.Session}
	if m.deps.Logger == nil {
		m.deps.Logger = logrus.New()
	}
	if m.deps.Publisher == nil {
		m.deps.Publisher = events.Nop{}
	}
	m.log = m.deps.Logger
	m.pub = m.deps.Publisher

	capOpts := cfg.Capture
	capOpts.Logger = m.log
	capOpts.OnLevel = m.onLevel
	capOpts.OnStateChange = func(s capture.State) { m.publishActive(events.TypeCapture, map[string]string{"state": string(s)}) }
	capOpts.OnResult = m.onCaptureResult
	m.capture = capture.New(cfg.Device, cfg.Transcriber, capOpts)

	pbOpts := cfg.Playback
	pbOpts.Logger = m.log
	pbOpts.OnStateChange = func(s playback.State) { m.publishActive(events.TypePlayback, map[string]string{"state": string(s)}) }
	m.playback = playback.New(cfg.Synthesizer, cfg.Output, pbOpts)

	m.deps.Recorder = m.capture
	m.deps.Speaker = m.playback
	return m
}

// Open replaces the active session with interviewID and loads it. The session
// stays active after a failed load so its error can be shown.
func (m *Manager) Open(ctx context.Context, interviewID, userID string) (*Controller, error) {
	const op = "Manager.Open"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	ctl := NewController(interviewID, userID, m.deps)

	m.mu.Lock()
	prev := m.active
	m.active = ctl
	m.mu.Unlock()

	if prev != nil {
		m.log.WithField("interview_id", prev.InterviewID()).Info("closing previous session")
		prev.Close()
	}

	if err := ctl.Load(ctx); err != nil {
		return ctl, err
	}
	return ctl, nil
}

// Active returns the live session for interviewID owned by userID.
func (m *Manager) Active(interviewID, userID string) (*Controller, error) {
	const op = "Manager.Active"

	m.mu.Lock()
	ctl := m.active
	m.mu.Unlock()

	if ctl == nil || ctl.InterviewID() != interviewID {
		return nil, utils.E(utils.CodeNotFound, op, "interview session is not open", nil)
	}
	if ctl.UserID() != userID {
		return nil, utils.E(utils.CodeForbidden, op, "interview session belongs to another user", nil)
	}
	return ctl, nil
}

// Close ends the session for interviewID if it is the active one.
func (m *Manager) Close(interviewID, userID string) error {
	ctl, err := m.Active(interviewID, userID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.active == ctl {
		m.active = nil
	}
	m.mu.Unlock()
	ctl.Close()
	return nil
}

// Shutdown closes the active session and releases the devices.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ctl := m.active
	m.active = nil
	m.mu.Unlock()

	if ctl != nil {
		ctl.Close()
	}
	_ = m.capture.Close()
	_ = m.playback.Close()
}

func (m *Manager) current() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) onLevel(level float64) {
	m.publishActive(events.TypeLevel, map[string]float64{"level": level})
}

func (m *Manager) onCaptureResult(text string, err error) {
	if ctl := m.current(); ctl != nil {
		ctl.HandleCaptureResult(text, err)
	}
}

func (m *Manager) publishActive(typ string, data any) {
	ctl := m.current()
	if ctl == nil {
		return
	}
	if err := m.pub.Publish(context.Background(), events.Event{
		Type:        typ,
		InterviewID: ctl.InterviewID(),
		Data:        data,
	}); err != nil {
		m.log.WithError(err).Debug("event publish failed")
	}
}
