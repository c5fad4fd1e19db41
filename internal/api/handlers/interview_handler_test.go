package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoospeak-interview/internal/interview"
	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/services"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type memStore struct {
	mu    sync.Mutex
	iv    *models.Interview
	turns []models.Turn
}

func (s *memStore) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	if s.iv == nil || s.iv.InterviewID != id {
		return nil, utils.ErrNotFound
	}
	return s.iv, nil
}

func (s *memStore) GetTurns(ctx context.Context, id string) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.turns...), nil
}

func (s *memStore) CreateTurns(ctx context.Context, id string, firstSeq int, questions []string) ([]models.Turn, error) {
	return nil, errors.New("not used")
}

func (s *memStore) UpdateAnswer(ctx context.Context, turnID, answer string) error { return nil }

func (s *memStore) SaveFeedback(ctx context.Context, turnID, feedback string, followUps []string) error {
	return nil
}

func (s *memStore) Complete(ctx context.Context, interviewID string) error { return nil }

type stubAnalyzer struct {
	feedbackErr error
}

func (a stubAnalyzer) AnalyzeAnswer(ctx context.Context, question, answer, resume string) (string, error) {
	if a.feedbackErr != nil {
		return "", a.feedbackErr
	}
	return "clear and specific", nil
}

func (a stubAnalyzer) GenerateFollowUp(ctx context.Context, question, answer string) ([]string, error) {
	return []string{"What would you change?"}, nil
}

func (a stubAnalyzer) GenerateQuestions(ctx context.Context, qc services.QuestionContext) ([]string, error) {
	return nil, errors.New("not used")
}

type quietSpeaker struct{}

func (quietSpeaker) Speak(ctx context.Context, text string) error { return nil }
func (quietSpeaker) Stop()                                        {}

type idleRecorder struct{}

func (idleRecorder) StartListening(ctx context.Context) error { return nil }
func (idleRecorder) StopListening(ctx context.Context) (string, error) {
	return "spoken answer", nil
}
func (idleRecorder) Abort() {}

// singleSession mirrors interview.Manager for one preloaded controller.
type singleSession struct {
	deps interview.Deps
	ctl  *interview.Controller
}

func (s *singleSession) Open(ctx context.Context, interviewID, userID string) (*interview.Controller, error) {
	if s.ctl != nil {
		s.ctl.Close()
	}
	s.ctl = interview.NewController(interviewID, userID, s.deps)
	return s.ctl, s.ctl.Load(ctx)
}

func (s *singleSession) Active(interviewID, userID string) (*interview.Controller, error) {
	if s.ctl == nil || s.ctl.InterviewID() != interviewID {
		return nil, utils.E(utils.CodeNotFound, "singleSession.Active", "interview session is not open", nil)
	}
	if s.ctl.UserID() != userID {
		return nil, utils.E(utils.CodeForbidden, "singleSession.Active", "forbidden", nil)
	}
	return s.ctl, nil
}

func (s *singleSession) Close(interviewID, userID string) error {
	ctl, err := s.Active(interviewID, userID)
	if err != nil {
		return err
	}
	ctl.Close()
	s.ctl = nil
	return nil
}

func newTestRouter(t *testing.T, an stubAnalyzer) (*gin.Engine, *singleSession) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	sessions := &singleSession{deps: interview.Deps{
		Store: &memStore{
			iv: &models.Interview{InterviewID: "iv-1", UserID: "user-1", Company: "Acme", Position: "Backend Engineer"},
			turns: []models.Turn{
				{TurnID: "t1", InterviewID: "iv-1", Seq: 0, Question: "Tell me about yourself."},
				{TurnID: "t2", InterviewID: "iv-1", Seq: 1, Question: "Why Acme?"},
			},
		},
		Analyzer: an,
		Speaker:  quietSpeaker{},
		Recorder: idleRecorder{},
		Logger:   log,
	}}
	t.Cleanup(func() {
		if sessions.ctl != nil {
			sessions.ctl.Close()
		}
	})

	h := NewInterviewHandler(sessions, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set("user_id", u)
		}
		c.Next()
	})
	g := r.Group("/interviews/:interview_id")
	g.POST("/session", h.Open)
	g.GET("/session", h.Get)
	g.DELETE("/session", h.Close)
	g.POST("/session/record/start", h.StartRecording)
	g.POST("/session/record/stop", h.StopRecording)
	g.PUT("/session/draft", h.SetDraft)
	g.POST("/session/answer", h.SubmitAnswer)
	g.POST("/session/speak", h.Speak)
	g.GET("/answers", h.Answers)
	return r, sessions
}

func do(r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestInterviewHandler_RequiresUser(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})

	w := do(r, http.MethodPost, "/interviews/iv-1/session", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := decode[APIError](t, w); got.Code != utils.CodeUnauthorized {
		t.Fatalf("code = %s", got.Code)
	}
}

func TestInterviewHandler_OpenReturnsSnapshot(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})

	w := do(r, http.MethodPost, "/interviews/iv-1/session", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	snap := decode[interview.Snapshot](t, w)
	if snap.State != interview.StateAwaitingAnswer || len(snap.Turns) != 2 || snap.Cursor != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !snap.TypingEnabled || !snap.RecordingEnabled {
		t.Fatalf("inputs should be enabled: %+v", snap)
	}
}

func TestInterviewHandler_OpenUnknownInterview(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})

	w := do(r, http.MethodPost, "/interviews/missing/session", "user-1", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if got := decode[APIError](t, w); got.Code != utils.CodeLoadFailed || got.Message == "" {
		t.Fatalf("unexpected error %+v", got)
	}
}

func TestInterviewHandler_OtherUserIsForbidden(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})
	do(r, http.MethodPost, "/interviews/iv-1/session", "user-1", "")

	w := do(r, http.MethodGet, "/interviews/iv-1/session", "user-2", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestInterviewHandler_DraftThenSubmit(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})
	do(r, http.MethodPost, "/interviews/iv-1/session", "user-1", "")

	w := do(r, http.MethodPut, "/interviews/iv-1/session/draft", "user-1", `{"text":"I build backends."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("draft status = %d body=%s", w.Code, w.Body.String())
	}
	if got := decode[interview.Snapshot](t, w); got.Draft != "I build backends." {
		t.Fatalf("draft = %q", got.Draft)
	}

	// empty body submits the draft
	w = do(r, http.MethodPost, "/interviews/iv-1/session/answer", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d body=%s", w.Code, w.Body.String())
	}
	res := decode[SubmitAnswerResponse](t, w)
	if res.Turn.Answer != "I build backends." || res.Turn.Feedback != "clear and specific" {
		t.Fatalf("unexpected turn %+v", res.Turn)
	}
	if len(res.Turn.FollowUps) != 1 || res.Cursor != 1 || res.Complete {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.AnalysisError != nil {
		t.Fatalf("unexpected analysis error %+v", res.AnalysisError)
	}
	if res.Snapshot.Draft != "" || res.Snapshot.State != interview.StateAwaitingAnswer {
		t.Fatalf("unexpected snapshot %+v", res.Snapshot)
	}
}

func TestInterviewHandler_SubmitReportsAnalysisError(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{feedbackErr: errors.New("model overloaded")})
	do(r, http.MethodPost, "/interviews/iv-1/session", "user-1", "")

	w := do(r, http.MethodPost, "/interviews/iv-1/session/answer", "user-1", `{"text":"Because of the mission."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	res := decode[SubmitAnswerResponse](t, w)
	if res.AnalysisError == nil || res.AnalysisError.Code != utils.CodeAnalysisFailed {
		t.Fatalf("analysis error = %+v", res.AnalysisError)
	}
	if res.Turn.Answer != "Because of the mission." || res.Turn.Feedback != "" {
		t.Fatalf("answer should be kept without feedback: %+v", res.Turn)
	}
}

func TestInterviewHandler_EmptySubmitRejected(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})
	do(r, http.MethodPost, "/interviews/iv-1/session", "user-1", "")

	w := do(r, http.MethodPost, "/interviews/iv-1/session/answer", "user-1", `{"text":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestInterviewHandler_RecordingRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})
	do(r, http.MethodPost, "/interviews/iv-1/session", "user-1", "")

	w := do(r, http.MethodPost, "/interviews/iv-1/session/record/start", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d body=%s", w.Code, w.Body.String())
	}
	if snap := decode[interview.Snapshot](t, w); !snap.Recording || snap.TypingEnabled {
		t.Fatalf("unexpected snapshot while recording %+v", snap)
	}

	w = do(r, http.MethodPut, "/interviews/iv-1/session/draft", "user-1", `{"text":"typed"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("draft while recording status = %d, want 409", w.Code)
	}

	w = do(r, http.MethodPost, "/interviews/iv-1/session/record/stop", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d body=%s", w.Code, w.Body.String())
	}
	res := decode[StopRecordingResponse](t, w)
	if res.Text != "spoken answer" || res.Snapshot.Draft != "spoken answer" || res.Snapshot.Recording {
		t.Fatalf("unexpected stop response %+v", res)
	}
}

func TestInterviewHandler_CloseEndsSession(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})
	do(r, http.MethodPost, "/interviews/iv-1/session", "user-1", "")

	if w := do(r, http.MethodDelete, "/interviews/iv-1/session", "user-1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/interviews/iv-1/session", "user-1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after close status = %d, want 404", w.Code)
	}
}

func TestInterviewHandler_AnswersWithoutHistory(t *testing.T) {
	r, _ := newTestRouter(t, stubAnalyzer{})

	w := do(r, http.MethodGet, "/interviews/iv-1/answers", "user-1", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
