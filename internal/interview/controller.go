// Package interview runs the question, answer, feedback and follow-up cycle
// of one interview and coordinates it with capture and playback.
package interview

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoospeak-interview/internal/events"
	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/services"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type Store interface {
	GetInterview(ctx context.Context, interviewID string) (*models.Interview, error)
	GetTurns(ctx context.Context, interviewID string) ([]models.Turn, error)
	CreateTurns(ctx context.Context, interviewID string, firstSeq int, questions []string) ([]models.Turn, error)
	UpdateAnswer(ctx context.Context, turnID, answer string) error
	SaveFeedback(ctx context.Context, turnID, feedback string, followUps []string) error
	Complete(ctx context.Context, interviewID string) error
}

type Analyzer interface {
	AnalyzeAnswer(ctx context.Context, question, answer, resume string) (string, error)
	GenerateFollowUp(ctx context.Context, question, answer string) ([]string, error)
	GenerateQuestions(ctx context.Context, qc services.QuestionContext) ([]string, error)
}

type ResumeSource interface {
	ResumeContext(ctx context.Context, userID string) (string, error)
}

type Journal interface {
	Record(ctx context.Context, e services.AnswerEntry) error
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

type Recorder interface {
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) (string, error)
	Abort()
}

type Deps struct {
	Store     Store
	Analyzer  Analyzer
	Resumes   ResumeSource // optional
	Journal   Journal      // optional
	Speaker   Speaker
	Recorder  Recorder
	Publisher events.Publisher // optional

	// QuestionCount is the size of a generated question set.
	QuestionCount int
	// TaskTimeout bounds each best-effort task.
	TaskTimeout time.Duration
	Logger      *logrus.Logger
}

type Controller struct {
	d   Deps
	log *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	tasks  *BestEffort

	// speakGate orders question speech against StartRecording's Speaker.Stop.
	speakGate sync.Mutex

	mu        sync.Mutex
	state     State
	session   Session
	resume    string
	draft     string
	recording bool
	lastErr   error
	closed    bool
}

func NewController(interviewID, userID string, d Deps) *Controller {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.QuestionCount <= 0 {
		d.QuestionCount = 5
	}
	if d.TaskTimeout <= 0 {
		d.TaskTimeout = 30 * time.Second
	}
	log := d.Logger.WithFields(logrus.Fields{"interview_id": interviewID})
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		d:       d,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   NewBestEffort(ctx, d.TaskTimeout, log),
		state:   StateLoading,
		session: Session{InterviewID: interviewID, UserID: userID},
	}
}

func (c *Controller) InterviewID() string { return c.session.InterviewID }
func (c *Controller) UserID() string      { return c.session.UserID }

// Load fetches the interview and its turns, generating a question set when
// there are none. Any failure leaves the controller in StateFailed.
func (c *Controller) Load(ctx context.Context) error {
	const op = "Interview.Load"

	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()
	c.publishSnapshot()

	id := c.session.InterviewID
	iv, err := c.d.Store.GetInterview(ctx, id)
	if err != nil {
		return c.failLoad(op, "interview could not be fetched", err)
	}
	if iv.UserID != "" && c.session.UserID != "" && iv.UserID != c.session.UserID {
		return c.failLoad(op, "interview belongs to another user", utils.E(utils.CodeForbidden, op, "forbidden", nil))
	}

	resume := ""
	if c.d.Resumes != nil {
		r, err := c.d.Resumes.ResumeContext(ctx, c.session.UserID)
		if err != nil {
			c.log.WithError(err).Warn("resume context unavailable")
		}
		resume = r
	}

	stored, err := c.d.Store.GetTurns(ctx, id)
	if err != nil {
		return c.failLoad(op, "turns could not be fetched", err)
	}
	if len(stored) == 0 {
		qs, err := c.d.Analyzer.GenerateQuestions(ctx, services.QuestionContext{
			Company:  iv.Company,
			Position: iv.Position,
			Title:    iv.Title,
			Resume:   resume,
			Count:    c.d.QuestionCount,
		})
		if err != nil {
			return c.failLoad(op, "questions could not be generated", err)
		}
		stored, err = c.d.Store.CreateTurns(ctx, id, 0, qs)
		if err != nil {
			return c.failLoad(op, "questions could not be saved", err)
		}
	}

	turns := make([]Turn, 0, len(stored))
	for _, m := range stored {
		turns = append(turns, turnFromModel(m))
	}

	c.mu.Lock()
	c.session.Company = iv.Company
	c.session.Position = iv.Position
	c.session.Title = iv.Title
	c.session.Turns = turns
	c.session.Cursor = firstUnanswered(turns)
	c.resume = resume
	c.lastErr = nil
	question := ""
	if c.session.Cursor < len(turns) {
		c.state = StateAwaitingAnswer
		question = turns[c.session.Cursor].Question
	} else {
		c.state = StateComplete
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"turns": len(turns), "cursor": c.session.Cursor}).Info("interview loaded")
	c.publishSnapshot()
	if question != "" {
		c.speak(question)
	}
	return nil
}

func (c *Controller) failLoad(op, msg string, err error) error {
	appErr := utils.E(utils.CodeLoadFailed, op, msg, err)
	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = appErr
	c.mu.Unlock()
	c.log.WithError(err).Error("interview load failed")
	c.publishSnapshot()
	return appErr
}

// StartRecording begins voice capture. Recording is disabled while an answer
// is being submitted or analyzed.
func (c *Controller) StartRecording(ctx context.Context) error {
	const op = "Interview.StartRecording"

	c.mu.Lock()
	if err := c.usableLocked(op); err != nil {
		c.mu.Unlock()
		return err
	}
	switch {
	case c.recording:
		c.mu.Unlock()
		return utils.E(utils.CodeConflict, op, "already recording", nil)
	case c.state == StateSubmitting || c.state == StateAnalyzing:
		c.mu.Unlock()
		return utils.E(utils.CodeSubmissionInProgress, op, "recording is disabled while the answer is analyzed", nil)
	case c.state != StateAwaitingAnswer:
		st := c.state
		c.mu.Unlock()
		return utils.E(utils.CodeInvalidState, op, "no question is awaiting an answer (state "+string(st)+")", nil)
	}
	c.recording = true
	c.lastErr = nil
	c.mu.Unlock()

	// speech must not be captured as the answer
	c.d.Speaker.Stop()
	c.speakGate.Lock()
	c.d.Speaker.Stop()
	c.speakGate.Unlock()

	if err := c.d.Recorder.StartListening(ctx); err != nil {
		c.mu.Lock()
		c.recording = false
		c.lastErr = err
		c.mu.Unlock()
		c.publishSnapshot()
		return err
	}
	c.publishSnapshot()
	return nil
}

// StopRecording ends capture and places the transcription in the draft.
func (c *Controller) StopRecording(ctx context.Context) (string, error) {
	const op = "Interview.StopRecording"

	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return "", utils.E(utils.CodeInvalidState, op, "not recording", nil)
	}
	c.mu.Unlock()

	text, err := c.d.Recorder.StopListening(ctx)
	if utils.IsCode(err, utils.CodeInvalidState) {
		// an auto-stop is finishing; its result arrives through HandleCaptureResult
		c.log.WithError(err).Debug("stop raced an auto-stop")
		return "", err
	}
	c.HandleCaptureResult(text, err)
	return text, err
}

// HandleCaptureResult applies the outcome of a capture, whether stopped
// explicitly or by the duration limit.
func (c *Controller) HandleCaptureResult(text string, err error) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return
	}
	c.recording = false
	if err != nil {
		c.lastErr = err
	} else {
		c.draft = text
		c.lastErr = nil
	}
	c.mu.Unlock()

	if err == nil {
		c.publish(events.TypeTranscription, map[string]string{"text": text})
	}
	c.publishSnapshot()
}

// SetDraft replaces the typed answer. Typing is disabled while recording.
func (c *Controller) SetDraft(text string) error {
	const op = "Interview.SetDraft"

	c.mu.Lock()
	if err := c.usableLocked(op); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.recording {
		c.mu.Unlock()
		return utils.E(utils.CodeInvalidState, op, "typing is disabled while recording", nil)
	}
	c.draft = text
	c.mu.Unlock()
	c.publishSnapshot()
	return nil
}

// SubmitAnswer records text as the answer to the current turn, collects
// feedback and follow-ups, and advances. An empty text submits the draft.
// A nil error means the answer was persisted; analysis problems are reported
// in the result.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) (*SubmitResult, error) {
	const op = "Interview.SubmitAnswer"

	c.mu.Lock()
	if err := c.usableLocked(op); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		text = c.draft
	}
	text = strings.TrimSpace(text)
	switch {
	case c.state == StateSubmitting || c.state == StateAnalyzing:
		c.mu.Unlock()
		return nil, utils.E(utils.CodeSubmissionInProgress, op, "an answer is already being submitted", nil)
	case c.recording:
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "stop recording before submitting", nil)
	case c.state != StateAwaitingAnswer:
		st := c.state
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "no question is awaiting an answer (state "+string(st)+")", nil)
	case text == "":
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidArgument, op, "answer is empty", nil)
	}
	idx := c.session.Cursor
	turn := c.session.Turns[idx].clone()
	resume := c.resume
	c.draft = text
	c.lastErr = nil
	c.state = StateSubmitting
	c.mu.Unlock()
	c.publishSnapshot()

	log := c.log.WithField("turn_id", turn.ID)

	if err := c.d.Store.UpdateAnswer(ctx, turn.ID, text); err != nil {
		appErr := utils.E(utils.CodeSubmitFailed, op, "answer could not be saved", err)
		c.mu.Lock()
		c.state = StateAwaitingAnswer
		c.lastErr = appErr
		c.mu.Unlock()
		log.WithError(err).Warn("answer submit failed")
		c.publishSnapshot()
		return nil, appErr
	}

	c.mu.Lock()
	c.state = StateAnalyzing
	c.mu.Unlock()
	c.publishSnapshot()

	// the answer is stored; finish analysis even if the caller goes away
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	var (
		wg          sync.WaitGroup
		feedback    string
		analysisErr error
		followUps   []string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		fb, err := c.d.Analyzer.AnalyzeAnswer(actx, turn.Question, text, resume)
		if err != nil {
			if !utils.IsCode(err, utils.CodeAnalysisFailed) {
				err = utils.E(utils.CodeAnalysisFailed, op, "feedback could not be generated", err)
			}
			analysisErr = err
			return
		}
		feedback = fb
	}()
	go func() {
		defer wg.Done()
		fu, err := c.d.Analyzer.GenerateFollowUp(actx, turn.Question, text)
		if err != nil {
			log.WithError(err).Debug("follow-up generation failed")
			return
		}
		followUps = fu
	}()
	wg.Wait()

	if followUps == nil {
		followUps = []string{}
	}
	if analysisErr != nil {
		log.WithError(analysisErr).Warn("answer analysis failed")
	}

	c.mu.Lock()
	t := &c.session.Turns[idx]
	t.Answer = text
	t.Feedback = feedback
	t.FollowUps = followUps
	t.Answered = true
	answered := t.clone()
	c.draft = ""
	c.lastErr = analysisErr
	c.state = StateFeedbackReady
	c.mu.Unlock()
	c.publishSnapshot()

	c.mu.Lock()
	c.session.Cursor = idx + 1
	cursor := c.session.Cursor
	next := ""
	complete := cursor >= len(c.session.Turns)
	if complete {
		c.state = StateComplete
	} else {
		c.state = StateAwaitingAnswer
		next = c.session.Turns[cursor].Question
	}
	c.mu.Unlock()
	c.publishSnapshot()

	c.tasks.Go("save_feedback", func(ctx context.Context) error {
		return c.d.Store.SaveFeedback(ctx, answered.ID, answered.Feedback, answered.FollowUps)
	})
	if c.d.Journal != nil {
		entry := services.AnswerEntry{
			ID:          uuid.NewString(),
			UserID:      c.session.UserID,
			InterviewID: c.session.InterviewID,
			TurnID:      answered.ID,
			Question:    answered.Question,
			Answer:      answered.Answer,
			Feedback:    answered.Feedback,
			FollowUps:   answered.FollowUps,
			At:          time.Now().UTC(),
		}
		if analysisErr != nil {
			entry.AnalysisError = string(utils.CodeOf(analysisErr))
		}
		c.tasks.Go("journal_answer", func(ctx context.Context) error {
			return c.d.Journal.Record(ctx, entry)
		})
	}
	if complete {
		c.tasks.Go("complete_interview", func(ctx context.Context) error {
			return c.d.Store.Complete(ctx, c.session.InterviewID)
		})
	} else {
		c.speak(next)
	}

	log.WithFields(logrus.Fields{"cursor": cursor, "complete": complete}).Info("answer submitted")
	return &SubmitResult{
		Turn:          answered,
		Cursor:        cursor,
		Complete:      complete,
		AnalysisError: analysisErr,
	}, nil
}

// Repeat reads the current question aloud again.
func (c *Controller) Repeat(ctx context.Context) error {
	const op = "Interview.Repeat"

	c.mu.Lock()
	if err := c.usableLocked(op); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.recording {
		c.mu.Unlock()
		return utils.E(utils.CodeInvalidState, op, "cannot read aloud while recording", nil)
	}
	if c.session.Cursor >= len(c.session.Turns) {
		c.mu.Unlock()
		return utils.E(utils.CodeInvalidState, op, "interview is complete", nil)
	}
	question := c.session.Turns[c.session.Cursor].Question
	c.mu.Unlock()

	c.speakGate.Lock()
	defer c.speakGate.Unlock()
	c.mu.Lock()
	recording := c.recording
	c.mu.Unlock()
	if recording {
		return utils.E(utils.CodeInvalidState, op, "cannot read aloud while recording", nil)
	}
	return c.d.Speaker.Speak(ctx, question)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	turns := make([]Turn, len(c.session.Turns))
	for i, t := range c.session.Turns {
		turns[i] = t.clone()
	}
	busy := c.state == StateSubmitting || c.state == StateAnalyzing
	return Snapshot{
		InterviewID:      c.session.InterviewID,
		Company:          c.session.Company,
		Position:         c.session.Position,
		Title:            c.session.Title,
		State:            c.state,
		Turns:            turns,
		Cursor:           c.session.Cursor,
		Draft:            c.draft,
		Recording:        c.recording,
		TypingEnabled:    !c.recording && c.state == StateAwaitingAnswer,
		RecordingEnabled: !busy && c.state == StateAwaitingAnswer,
		Error:            errorView(c.lastErr),
	}
}

// Close releases capture and playback held for this session and waits for
// pending best-effort work.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	recording := c.recording
	c.recording = false
	c.mu.Unlock()

	if recording {
		c.d.Recorder.Abort()
	}
	c.d.Speaker.Stop()
	c.cancel()
	c.tasks.Close()
}

// Wait blocks until pending best-effort work has finished.
func (c *Controller) Wait() { c.tasks.Wait() }

func (c *Controller) usableLocked(op string) error {
	if c.closed {
		return utils.E(utils.CodeInvalidState, op, "session is closed", nil)
	}
	if c.state == StateFailed || c.state == StateLoading {
		return utils.E(utils.CodeInvalidState, op, "session is not loaded", nil)
	}
	return nil
}

func (c *Controller) speak(text string) {
	c.tasks.Go("speak", func(ctx context.Context) error {
		c.speakGate.Lock()
		defer c.speakGate.Unlock()
		c.mu.Lock()
		skip := c.recording || c.closed
		c.mu.Unlock()
		if skip {
			return nil
		}
		return c.d.Speaker.Speak(ctx, text)
	})
}

func (c *Controller) publishSnapshot() {
	c.publish(events.TypeSnapshot, c.Snapshot())
}

func (c *Controller) publish(typ string, data any) {
	err := c.d.Publisher.Publish(c.ctx, events.Event{
		Type:        typ,
		InterviewID: c.session.InterviewID,
		Data:        data,
	})
	if err != nil {
		c.log.WithError(err).Debug("event publish failed")
	}
}
