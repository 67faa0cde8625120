package models

import (
	"time"

	"gorm.io/gorm"
)

type Match struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	GameID        string         `json:"game_id" gorm:"uniqueIndex;not null"` // uuid handed to clients
	ChallengeID   uint           `json:"challenge_id" gorm:"not null"`
	ChallengeType string         `json:"challenge_type" gorm:"not null"`
	Status        string         `json:"status" gorm:"not null;default:'waiting'"` // waiting, active, finished
	StartedAt     *time.Time     `json:"started_at"`
	EndedAt       *time.Time     `json:"ended_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Challenge Challenge     `json:"challenge,omitempty"`
	Players   []MatchPlayer `json:"players,omitempty" gorm:"foreignKey:MatchID"`
	Result    *MatchResult  `json:"result,omitempty" gorm:"foreignKey:MatchID"`
}
