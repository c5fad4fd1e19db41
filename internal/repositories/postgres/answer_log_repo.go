package postgres

import (
	"context"

	"github.com/yoockh/yoospeak-interview/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerLogRepository interface {
	// Insert is idempotent on id.
	Insert(ctx context.Context, row *models.AnswerLog) error
	ListByInterview(ctx context.Context, userID, interviewID string, limit int) ([]models.AnswerLog, error)
}

type answerLogRepo struct {
	db *gorm.DB
}

func NewAnswerLogRepo(db *gorm.DB) AnswerLogRepository {
	return &answerLogRepo{db: db}
}

func (r *answerLogRepo) Insert(ctx context.Context, row *models.AnswerLog) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

func (r *answerLogRepo) ListByInterview(ctx context.Context, userID, interviewID string, limit int) ([]models.AnswerLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.AnswerLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND interview_id = ?", userID, interviewID).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
