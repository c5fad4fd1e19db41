package mongo

import (
	"context"
	"time"

	"github.com/yoockh/yoospeak-interview/internal/models"
	"github.com/yoockh/yoospeak-interview/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TurnRepository interface {
	ListByInterview(ctx context.Context, interviewID string) ([]models.Turn, error)
	InsertMany(ctx context.Context, turns []models.Turn) error
	// SetAnswer writes the answer only while the turn is unanswered.
	SetAnswer(ctx context.Context, turnID, answer string, at time.Time) error
	SetFeedback(ctx context.Context, turnID, feedback string, followUps []string) error
}

type turnRepo struct {
	col *mongo.Collection
}

func NewTurnRepo(db *mongo.Database) TurnRepository {
	return &turnRepo{col: db.Collection("turns")}
}

func (r *turnRepo) ListByInterview(ctx context.Context, interviewID string) ([]models.Turn, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"interview_id": interviewID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Turn
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *turnRepo) InsertMany(ctx context.Context, turns []models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	docs := make([]any, 0, len(turns))
	for i := range turns {
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = time.Now().UTC()
		}
		docs = append(docs, turns[i])
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r *turnRepo) SetAnswer(ctx context.Context, turnID, answer string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"turn_id": turnID,
			"$or": bson.A{
				bson.M{"answer": bson.M{"$exists": false}},
				bson.M{"answer": ""},
			},
		},
		bson.M{"$set": bson.M{
			"answer":      answer,
			"answered_at": at.UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *turnRepo) SetFeedback(ctx context.Context, turnID, feedback string, followUps []string) error {
	if followUps == nil {
		followUps = []string{}
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"turn_id": turnID},
		bson.M{"$set": bson.M{
			"feedback":   feedback,
			"follow_ups": followUps,
		}},
	)
	return err
}
