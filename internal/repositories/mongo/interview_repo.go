package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type InterviewRepository interface {
	GetByInterviewID(ctx context.Context, interviewID string) (*models.Interview, error)
	Create(ctx context.Context, iv *models.Interview) error
	SetStatus(ctx context.Context, interviewID, status string) error
}

type interviewRepo struct {
	col *mongo.Collection
}

func NewInterviewRepo(db *mongo.Database) InterviewRepository {
	return &interviewRepo{col: db.Collection("interviews")}
}

func (r *interviewRepo) GetByInterviewID(ctx context.Context, interviewID string) (*models.Interview, error) {
	var iv models.Interview
	err := r.col.FindOne(ctx, bson.M{"interview_id": interviewID}).Decode(&iv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &iv, err
}

func (r *interviewRepo) Create(ctx context.Context, iv *models.Interview) error {
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, iv)
	return err
}

func (r *interviewRepo) SetStatus(ctx context.Context, interviewID, status string) error {
	set := bson.M{"status": status}
	if status == "completed" {
		set["completed_at"] = time.Now().UTC()
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"interview_id": interviewID},
		bson.M{"$set": set},
	)
	return err
}
