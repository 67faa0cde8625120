package models

import (
	"time"

	"gorm.io/gorm"
)

// TestCase is one Python test case: the expression appended as a print
// statement and the stdout line it must produce.
type TestCase struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	ChallengeID    uint           `json:"challenge_id" gorm:"not null"`
	Input          string         `json:"input" gorm:"not null"`
	ExpectedOutput string         `json:"expected_output" gorm:"not null"`
	Order          int            `json:"order" gorm:"not null"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Challenge Challenge `json:"challenge,omitempty"`
}
