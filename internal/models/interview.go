package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Interview struct {
	ObjectID    primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	InterviewID string             `bson:"interview_id" json:"interview_id"` // uuid v4
	UserID      string             `bson:"user_id" json:"user_id"`           // uuid from Supabase Auth

	Company  string `bson:"company" json:"company"`
	Position string `bson:"position" json:"position"`
	Title    string `bson:"title" json:"title"`
	Language string `bson:"language,omitempty" json:"language,omitempty"` // en-US|id-ID
	Status   string `bson:"status" json:"status"`                         // active|completed

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
