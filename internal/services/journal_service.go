package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/yoospeak-interview/internal/models"
	pgrepo "github.com/yoockh/yoospeak-interview/internal/repositories/postgres"
	"github.com/yoockh/yoospeak-interview/internal/utils"
	"gorm.io/datatypes"
)

// AnswerEntry is one submitted answer with the outcome of its analysis.
type AnswerEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	InterviewID   string    `json:"interview_id"`
	TurnID        string    `json:"turn_id"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	Feedback      string    `json:"feedback"`
	FollowUps     []string  `json:"follow_ups"`
	AnalysisError string    `json:"analysis_error,omitempty"`
	At            time.Time `json:"at"`
}

type JournalService interface {
	Record(ctx context.Context, e AnswerEntry) error
	List(ctx context.Context, userID, interviewID string, limit int) ([]models.AnswerLog, error)
}

type journalService struct {
	logs pgrepo.AnswerLogRepository
}

func NewJournalService(logs pgrepo.AnswerLogRepository) JournalService {
	return &journalService{logs: logs}
}

func (s *journalService) Record(ctx context.Context, e AnswerEntry) error {
	const op = "JournalService.Record"

	if e.InterviewID == "" || e.TurnID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "interview_id and turn_id are required", nil)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	md, err := json.Marshal(map[string]any{
		"follow_ups":     e.FollowUps,
		"analysis_error": e.AnalysisError,
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode metadata", err)
	}

	row := &models.AnswerLog{
		ID:          e.ID,
		UserID:      e.UserID,
		InterviewID: e.InterviewID,
		TurnID:      e.TurnID,
		Question:    e.Question,
		Answer:      e.Answer,
		Feedback:    e.Feedback,
		Timestamp:   e.At,
		Metadata:    datatypes.JSON(md),
	}
	if err := s.logs.Insert(ctx, row); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert answer log", err)
	}
	return nil
}

func (s *journalService) List(ctx context.Context, userID, interviewID string, limit int) ([]models.AnswerLog, error) {
	const op = "JournalService.List"

	rows, err := s.logs.ListByInterview(ctx, userID, interviewID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list answer logs", err)
	}
	return rows, nil
}
