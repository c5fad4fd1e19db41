package config

import (
	"errors"
	"os"
	"time"

	"github.com/yoockh/yoospeak-interview/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitPostgres opens POSTGRES_URI with a small pool.
func InitPostgres() (*gorm.DB, error) {
	uri := os.Getenv("POSTGRES_URI")
	if uri == "" {
		return nil, errors.New("POSTGRES_URI environment variable is not set")
	}
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one local agent, one user
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// MigratePostgres creates the tables the agent writes. resumes is owned by
// the resume service and only read here.
func MigratePostgres(db *gorm.DB) error {
	return db.AutoMigrate(&models.AnswerLog{})
}
