package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoospeak-interview/internal/interview"
	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type SessionManager interface {
	Open(ctx context.Context, interviewID, userID string) (*interview.Controller, error)
	Active(interviewID, userID string) (*interview.Controller, error)
	Close(interviewID, userID string) error
}

type AnswerHistory interface {
	List(ctx context.Context, userID, interviewID string, limit int) ([]models.AnswerLog, error)
}

type InterviewHandler struct {
	sessions SessionManager
	history  AnswerHistory // optional
}

func NewInterviewHandler(sessions SessionManager, history AnswerHistory) *InterviewHandler {
	return &InterviewHandler{sessions: sessions, history: history}
}

type TextRequest struct {
	Text string `json:"text"`
}

type StopRecordingResponse struct {
	Text     string             `json:"text"`
	Snapshot interview.Snapshot `json:"snapshot"`
}

type SubmitAnswerResponse struct {
	Turn          interview.Turn     `json:"turn"`
	Cursor        int                `json:"cursor"`
	Complete      bool               `json:"complete"`
	AnalysisError *APIError          `json:"analysis_error,omitempty"`
	Snapshot      interview.Snapshot `json:"snapshot"`
}

// Open starts (or restarts) the session for the interview.
func (h *InterviewHandler) Open(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ctl, err := h.sessions.Open(c.Request.Context(), c.Param("interview_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *InterviewHandler) Get(c *gin.Context) {
	ctl, ok := h.active(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *InterviewHandler) Close(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.sessions.Close(c.Param("interview_id"), userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InterviewHandler) StartRecording(c *gin.Context) {
	ctl, ok := h.active(c)
	if !ok {
		return
	}
	if err := ctl.StartRecording(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *InterviewHandler) StopRecording(c *gin.Context) {
	ctl, ok := h.active(c)
	if !ok {
		return
	}
	text, err := ctl.StopRecording(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, StopRecordingResponse{Text: text, Snapshot: ctl.Snapshot()})
}

func (h *InterviewHandler) SetDraft(c *gin.Context) {
	ctl, ok := h.active(c)
	if !ok {
		return
	}
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.SetDraft", "invalid request body", err))
		return
	}
	if err := ctl.SetDraft(req.Text); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctl.Snapshot())
}

// SubmitAnswer submits the body text, or the current draft when it is empty.
func (h *InterviewHandler) SubmitAnswer(c *gin.Context) {
	ctl, ok := h.active(c)
	if !ok {
		return
	}
	var req TextRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.SubmitAnswer", "invalid request body", err))
			return
		}
	}

	res, err := ctl.SubmitAnswer(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}

	out := SubmitAnswerResponse{
		Turn:     res.Turn,
		Cursor:   res.Cursor,
		Complete: res.Complete,
		Snapshot: ctl.Snapshot(),
	}
	if res.AnalysisError != nil {
		e := apiError(res.AnalysisError)
		out.AnalysisError = &e
	}
	c.JSON(http.StatusOK, out)
}

// Speak reads the current question aloud again.
func (h *InterviewHandler) Speak(c *gin.Context) {
	ctl, ok := h.active(c)
	if !ok {
		return
	}
	if err := ctl.Repeat(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *InterviewHandler) Answers(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.history == nil {
		writeError(c, utils.E(utils.CodeUnavailable, "InterviewHandler.Answers", "answer history is not configured", nil))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.history.List(c.Request.Context(), userID, c.Param("interview_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": rows})
}

func (h *InterviewHandler) active(c *gin.Context) (*interview.Controller, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}
	ctl, err := h.sessions.Active(c.Param("interview_id"), userID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return ctl, true
}
