package models

import (
	"time"

	"gorm.io/gorm"
)

type MatchPlayer struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	MatchID   uint           `json:"match_id" gorm:"not null"`
	UserID    string         `json:"user_id" gorm:"not null"` // client-persisted stable id
	Name      string         `json:"name" gorm:"not null"`
	JoinedAt  time.Time      `json:"joined_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Match Match `json:"match,omitempty"`
}
