package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Resume is read-only context for question generation and answer analysis.
type Resume struct {
	ID      string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID  string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Title   string `gorm:"column:title;type:text" json:"title"`
	Summary string `gorm:"column:summary;type:text" json:"summary"`

	Skills pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`

	// [{"company": "...", "role": "...", "highlights": ["..."]}]
	Experience datatypes.JSON `gorm:"column:experience;type:jsonb" json:"experience"`

	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;index" json:"updated_at"`
}

func (Resume) TableName() string { return "resumes" }

// ResumeExperience is one entry of Resume.Experience.
type ResumeExperience struct {
	Company    string   `json:"company"`
	Role       string   `json:"role"`
	Highlights []string `json:"highlights"`
}
