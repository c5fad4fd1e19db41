package config

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := db.Collection("interviews").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "interview_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_interview_id").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_user_created"),
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("turns").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "turn_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_turn_id").
				SetUnique(true),
		},
		// question order within an interview
		{
			Keys: bson.D{{Key: "interview_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().
				SetName("uniq_interview_seq").
				SetUnique(true),
		},
	})
	return err
}
