package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/yoospeak-interview/internal/models"
	mongorepo "github.com/yoockh/yoospeak-interview/internal/repositories/mongo"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

type InterviewStore interface {
	GetInterview(ctx context.Context, interviewID string) (*models.Interview, error)
	GetTurns(ctx context.Context, interviewID string) ([]models.Turn, error)
	// CreateTurns appends one turn per question after the existing ones.
	CreateTurns(ctx context.Context, interviewID string, firstSeq int, questions []string) ([]models.Turn, error)
	UpdateAnswer(ctx context.Context, turnID, answer string) error
	SaveFeedback(ctx context.Context, turnID, feedback string, followUps []string) error
	Complete(ctx context.Context, interviewID string) error
}

type interviewStore struct {
	interviews mongorepo.InterviewRepository
	turns      mongorepo.TurnRepository
}

func NewInterviewStore(interviews mongorepo.InterviewRepository, turns mongorepo.TurnRepository) InterviewStore {
	return &interviewStore{interviews: interviews, turns: turns}
}

func (s *interviewStore) GetInterview(ctx context.Context, interviewID string) (*models.Interview, error) {
	const op = "InterviewStore.GetInterview"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}
	iv, err := s.interviews.GetByInterviewID(ctx, interviewID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "interview not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get interview", err)
	}
	return iv, nil
}

func (s *interviewStore) GetTurns(ctx context.Context, interviewID string) ([]models.Turn, error) {
	const op = "InterviewStore.GetTurns"

	turns, err := s.turns.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list turns", err)
	}
	return turns, nil
}

func (s *interviewStore) CreateTurns(ctx context.Context, interviewID string, firstSeq int, questions []string) ([]models.Turn, error) {
	const op = "InterviewStore.CreateTurns"

	now := time.Now().UTC()
	turns := make([]models.Turn, 0, len(questions))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		turns = append(turns, models.Turn{
			TurnID:      uuid.NewString(),
			InterviewID: interviewID,
			Seq:         firstSeq + len(turns),
			Question:    q,
			FollowUps:   []string{},
			CreatedAt:   now,
		})
	}
	if len(turns) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "no questions to create", nil)
	}
	if err := s.turns.InsertMany(ctx, turns); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create turns", err)
	}
	return turns, nil
}

func (s *interviewStore) UpdateAnswer(ctx context.Context, turnID, answer string) error {
	const op = "InterviewStore.UpdateAnswer"

	if turnID == "" || strings.TrimSpace(answer) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "turn_id and answer are required", nil)
	}
	if err := s.turns.SetAnswer(ctx, turnID, answer, time.Now()); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeConflict, op, "turn is missing or already answered", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to save answer", err)
	}
	return nil
}

func (s *interviewStore) SaveFeedback(ctx context.Context, turnID, feedback string, followUps []string) error {
	const op = "InterviewStore.SaveFeedback"

	if err := s.turns.SetFeedback(ctx, turnID, feedback, followUps); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save feedback", err)
	}
	return nil
}

func (s *interviewStore) Complete(ctx context.Context, interviewID string) error {
	const op = "InterviewStore.Complete"

	if err := s.interviews.SetStatus(ctx, interviewID, "completed"); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to complete interview", err)
	}
	return nil
}
