package models

import (
	"time"

	"gorm.io/gorm"
)

type MatchResult struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	MatchID      uint           `json:"match_id" gorm:"uniqueIndex;not null"`
	WinnerUserID string         `json:"winner_user_id"`
	WinnerName   string         `json:"winner_name"`
	Margin       string         `json:"margin"`
	IsTie        bool           `json:"is_tie" gorm:"not null;default:false"`
	IsForfeit    bool           `json:"is_forfeit" gorm:"not null;default:false"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Match Match `json:"match,omitempty"`
}
