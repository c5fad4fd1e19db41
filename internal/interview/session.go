package interview

import (
	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type State string

const (
	StateLoading        State = "loading"
	StateAwaitingAnswer State = "awaiting_answer"
	StateSubmitting     State = "submitting"
	StateAnalyzing      State = "analyzing"
	StateFeedbackReady  State = "feedback_ready"
	StateComplete       State = "complete"
	StateFailed         State = "failed"
)

// Turn is the in-memory view of one question. Once Answered, its answer,
// feedback and follow-ups do not change.
type Turn struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer,omitempty"`
	Feedback  string   `json:"feedback"`
	FollowUps []string `json:"follow_ups"`
	Answered  bool     `json:"answered"`
}

func (t Turn) clone() Turn {
	t.FollowUps = append([]string{}, t.FollowUps...)
	return t
}

func turnFromModel(m models.Turn) Turn {
	return Turn{
		ID:        m.TurnID,
		Question:  m.Question,
		Answer:    m.Answer,
		Feedback:  m.Feedback,
		FollowUps: append([]string{}, m.FollowUps...),
		Answered:  m.Answered(),
	}
}

// Session is the interview being driven. Turns are in question order and
// Cursor never moves backwards.
type Session struct {
	InterviewID string
	UserID      string
	Company     string
	Position    string
	Title       string
	Turns       []Turn
	Cursor      int
}

// firstUnanswered is where a reloaded session resumes.
func firstUnanswered(turns []Turn) int {
	for i, t := range turns {
		if !t.Answered {
			return i
		}
	}
	return len(turns)
}

type ErrorView struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func errorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	code := utils.CodeOf(err)
	if code == "" {
		code = utils.CodeInternal
	}
	return &ErrorView{Code: code, Message: utils.UserMessage(err)}
}

// Snapshot is everything the UI renders.
type Snapshot struct {
	InterviewID      string     `json:"interview_id"`
	Company          string     `json:"company"`
	Position         string     `json:"position"`
	Title            string     `json:"title"`
	State            State      `json:"state"`
	Turns            []Turn     `json:"turns"`
	Cursor           int        `json:"cursor"`
	Draft            string     `json:"draft"`
	Recording        bool       `json:"recording"`
	TypingEnabled    bool       `json:"typing_enabled"`
	RecordingEnabled bool       `json:"recording_enabled"`
	Error            *ErrorView `json:"error,omitempty"`
}

// SubmitResult is the outcome of a persisted answer. AnalysisError is set
// when feedback could not be produced; the answer is still recorded.
type SubmitResult struct {
	Turn          Turn  `json:"turn"`
	Cursor        int   `json:"cursor"`
	Complete      bool  `json:"complete"`
	AnalysisError error `json:"-"`
}
