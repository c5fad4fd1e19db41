package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnswerLog journals each submitted answer with the feedback it received.
type AnswerLog struct {
	ID          string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      string         `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	InterviewID string         `gorm:"column:interview_id;type:uuid;index" json:"interview_id"`
	TurnID      string         `gorm:"column:turn_id;type:uuid" json:"turn_id"`
	Question    string         `gorm:"column:question;type:text" json:"question"`
	Answer      string         `gorm:"column:answer;type:text" json:"answer"`
	Feedback    string         `gorm:"column:feedback;type:text" json:"feedback"`
	Timestamp   time.Time      `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"` // {"follow_ups": [...], "analysis_error": "..."}
}

func (AnswerLog) TableName() string { return "answer_logs" }
