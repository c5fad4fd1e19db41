package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/utils"
	"gorm.io/gorm"
)

type ResumeRepository interface {
	LatestByUserID(ctx context.Context, userID string) (*models.Resume, error)
}

type resumeRepo struct {
	db *gorm.DB
}

func NewResumeRepo(db *gorm.DB) ResumeRepository {
	return &resumeRepo{db: db}
}

func (r *resumeRepo) LatestByUserID(ctx context.Context, userID string) (*models.Resume, error) {
	var row models.Resume
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
