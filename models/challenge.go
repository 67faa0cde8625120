package models

import (
	"time"

	"gorm.io/gorm"
)

type Challenge struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Title         string         `json:"title" gorm:"not null"`
	Prompt        string         `json:"prompt" gorm:"type:text;not null"`
	Subject       string         `json:"subject" gorm:"not null"` // sql, python
	ChallengeType string         `json:"challenge_type" gorm:"not null"`
	CustomMinutes int            `json:"custom_minutes" gorm:"not null;default:10"`
	ExpectedRows  string         `json:"expected_rows" gorm:"type:jsonb"` // SQL: expected row set as JSON
	UserID        uint           `json:"user_id" gorm:"not null"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	User      User       `json:"user,omitempty"`
	TestCases []TestCase `json:"test_cases,omitempty" gorm:"foreignKey:ChallengeID"`
	Matches   []Match    `json:"matches,omitempty" gorm:"foreignKey:ChallengeID"`
}
