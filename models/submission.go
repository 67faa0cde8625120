package models

import (
	"time"

	"gorm.io/gorm"
)

type Submission struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	MatchID   uint           `json:"match_id" gorm:"not null"`
	UserID    string         `json:"user_id" gorm:"not null"`
	Subject   string         `json:"subject" gorm:"not null"`
	Code      string         `json:"code" gorm:"type:text;not null"`
	RawOutput string         `json:"raw_output" gorm:"type:text"`
	IsCorrect bool           `json:"is_correct" gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Match Match `json:"match,omitempty"`
}
