package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Turn is one question/answer/feedback unit. Seq gives question order.
type Turn struct {
	ObjectID    primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TurnID      string             `bson:"turn_id" json:"id"`
	InterviewID string             `bson:"interview_id" json:"interview_id"`
	Seq         int                `bson:"seq" json:"seq"`

	Question  string   `bson:"question" json:"question"`
	Answer    string   `bson:"answer,omitempty" json:"answer,omitempty"`
	Feedback  string   `bson:"feedback,omitempty" json:"feedback"`
	FollowUps []string `bson:"follow_ups,omitempty" json:"follow_ups"`

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	AnsweredAt *time.Time `bson:"answered_at,omitempty" json:"answered_at,omitempty"`
}

// Answered reports whether an answer has been recorded for the turn.
func (t Turn) Answered() bool { return t.Answer != "" }
