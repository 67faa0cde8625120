package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"codebattle/client"
	"codebattle/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type MatchService struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewMatchService(db *gorm.DB, redis *redis.Client) *MatchService {
	return &MatchService{db: db, redis: redis}
}

type CreateMatchRequest struct {
	ChallengeID uint   `json:"challenge_id" binding:"required"`
	UserID      string `json:"user_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
}

type JoinMatchRequest struct {
	GameID string `json:"game_id" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

// MatchState is the live view of a match kept in Redis while it runs. The
// database only sees the terminal outcome.
type MatchState struct {
	GameID          string             `json:"game_id"`
	ChallengeID     uint               `json:"challenge_id"`
	ChallengeType   string             `json:"challenge_type"`
	Status          string             `json:"status"`
	DurationSeconds int                `json:"duration_seconds"`
	Players         []MatchStatePlayer `json:"players"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
}

type MatchStatePlayer struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	SocketID  string `json:"socket_id,omitempty"`
	Connected bool   `json:"connected"`
}

func (s *MatchService) CreateMatch(req *CreateMatchRequest) (*models.Match, error) {
	var challenge models.Challenge
	if err := s.db.First(&challenge, req.ChallengeID).Error; err != nil {
		return nil, errors.New("challenge not found")
	}

	match := models.Match{
		GameID:        uuid.NewString(),
		ChallengeID:   challenge.ID,
		ChallengeType: challenge.ChallengeType,
		Status:        "waiting",
	}
	if err := s.db.Create(&match).Error; err != nil {
		return nil, err
	}

	player := models.MatchPlayer{
		MatchID:  match.ID,
		UserID:   req.UserID,
		Name:     req.Name,
		JoinedAt: time.Now(),
	}
	if err := s.db.Create(&player).Error; err != nil {
		return nil, err
	}

	duration := client.ChallengeDuration(challenge.ChallengeType, challenge.CustomMinutes)
	state := &MatchState{
		GameID:          match.GameID,
		ChallengeID:     challenge.ID,
		ChallengeType:   challenge.ChallengeType,
		Status:          match.Status,
		DurationSeconds: int(duration / time.Second),
		Players: []MatchStatePlayer{
			{UserID: req.UserID, Name: req.Name},
		},
	}
	if err := s.storeMatchState(match.GameID, state); err != nil {
		log.Printf("Failed to store match state in Redis: %v", err)
	}

	return &match, nil
}

func (s *MatchService) JoinMatch(req *JoinMatchRequest) (*models.Match, error) {
	var match models.Match
	if err := s.db.Where("game_id = ?", req.GameID).Preload("Players").First(&match).Error; err != nil {
		return nil, errors.New("match not found")
	}

	if match.Status != "waiting" {
		return nil, fmt.Errorf("match has status '%s' - cannot join", match.Status)
	}

	for _, p := range match.Players {
		if p.UserID == req.UserID {
			return nil, errors.New("already joined this match")
		}
		if p.Name == req.Name {
			return nil, errors.New("player name already taken")
		}
	}

	player := models.MatchPlayer{
		MatchID:  match.ID,
		UserID:   req.UserID,
		Name:     req.Name,
		JoinedAt: time.Now(),
	}
	if err := s.db.Create(&player).Error; err != nil {
		return nil, err
	}

	// Two players make the match active.
	now := time.Now()
	if err := s.db.Model(&match).Updates(map[string]any{"status": "active", "started_at": now}).Error; err != nil {
		return nil, err
	}
	match.Status = "active"
	match.StartedAt = &now

	state := s.getMatchState(req.GameID)
	if state != nil {
		state.Status = "active"
		state.StartedAt = &now
		state.Players = append(state.Players, MatchStatePlayer{UserID: req.UserID, Name: req.Name})
		s.storeMatchState(req.GameID, state)
	}

	return &match, nil
}

func (s *MatchService) GetMatchByGameID(gameID string) (*models.Match, error) {
	var match models.Match
	err := s.db.Where("game_id = ?", gameID).
		Preload("Challenge").
		Preload("Challenge.TestCases").
		Preload("Players").
		Preload("Result").
		First(&match).Error
	return &match, err
}

// AttachSocket records which socket identity a player is connected through.
func (s *MatchService) AttachSocket(gameID, userID, socketID string) error {
	state := s.getMatchState(gameID)
	if state == nil {
		return errors.New("match state not found")
	}
	for i := range state.Players {
		if state.Players[i].UserID == userID {
			state.Players[i].SocketID = socketID
			state.Players[i].Connected = true
			return s.storeMatchState(gameID, state)
		}
	}
	return errors.New("player not in match")
}

// ReattachSocket re-associates a reconnecting player with their new socket,
// located by the socket identity they held before the disconnect.
func (s *MatchService) ReattachSocket(gameID, userID, previousSocketID, newSocketID string) error {
	state := s.getMatchState(gameID)
	if state == nil {
		return errors.New("match state not found")
	}
	for i := range state.Players {
		p := &state.Players[i]
		if p.UserID == userID || (previousSocketID != "" && p.SocketID == previousSocketID) {
			p.UserID = userID
			p.SocketID = newSocketID
			p.Connected = true
			return s.storeMatchState(gameID, state)
		}
	}
	return errors.New("no prior identity to reattach")
}

// DetachSocket marks a player disconnected without ending the match; the
// forfeit decision belongs to the client's grace timer.
func (s *MatchService) DetachSocket(gameID, socketID string) {
	state := s.getMatchState(gameID)
	if state == nil {
		return
	}
	for i := range state.Players {
		if state.Players[i].SocketID == socketID {
			state.Players[i].Connected = false
			s.storeMatchState(gameID, state)
			return
		}
	}
}

type RecordResultRequest struct {
	GameID       string
	WinnerUserID string
	WinnerName   string
	Margin       string
	IsTie        bool
	IsForfeit    bool
}

// RecordResult persists the terminal outcome. The first result wins; a match
// ends exactly once.
func (s *MatchService) RecordResult(req *RecordResultRequest) (*models.MatchResult, error) {
	var match models.Match
	if err := s.db.Where("game_id = ?", req.GameID).First(&match).Error; err != nil {
		return nil, errors.New("match not found")
	}

	var existing models.MatchResult
	if err := s.db.Where("match_id = ?", match.ID).First(&existing).Error; err == nil {
		log.Printf("Match %s already has a result, ignoring duplicate", req.GameID)
		return &existing, nil
	}

	result := models.MatchResult{
		MatchID:      match.ID,
		WinnerUserID: req.WinnerUserID,
		WinnerName:   req.WinnerName,
		Margin:       req.Margin,
		IsTie:        req.IsTie,
		IsForfeit:    req.IsForfeit,
	}
	if err := s.db.Create(&result).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(&match).Updates(map[string]any{"status": "finished", "ended_at": now}).Error; err != nil {
		return nil, err
	}

	if state := s.getMatchState(req.GameID); state != nil {
		state.Status = "finished"
		s.storeMatchState(req.GameID, state)
	}

	return &result, nil
}

// WinnerBySocketID resolves the winner's name and user id from the socket
// identity reported in a gameResult event.
func (s *MatchService) WinnerBySocketID(gameID, socketID string) (userID, name string, err error) {
	state := s.getMatchState(gameID)
	if state == nil {
		return "", "", errors.New("match state not found")
	}
	for _, p := range state.Players {
		if p.SocketID == socketID {
			return p.UserID, p.Name, nil
		}
	}
	return "", "", errors.New("no player with that socket id")
}

func (s *MatchService) GetMatchState(gameID string) (*MatchState, error) {
	state := s.getMatchState(gameID)
	if state == nil {
		return nil, errors.New("match state not found")
	}
	return state, nil
}

func (s *MatchService) RecordSubmission(gameID, userID, subject, code, rawOutput string, isCorrect bool) error {
	var match models.Match
	if err := s.db.Where("game_id = ?", gameID).First(&match).Error; err != nil {
		return errors.New("match not found")
	}

	submission := models.Submission{
		MatchID:   match.ID,
		UserID:    userID,
		Subject:   subject,
		Code:      code,
		RawOutput: rawOutput,
		IsCorrect: isCorrect,
	}
	return s.db.Create(&submission).Error
}

func (s *MatchService) storeMatchState(gameID string, state *MatchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal match state: %w", err)
	}

	// Live state expires with the longest match plus slack.
	if err := s.redis.Set(context.Background(), "match:"+gameID, data, 2*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}
	return nil
}

func (s *MatchService) getMatchState(gameID string) *MatchState {
	data, err := s.redis.Get(context.Background(), "match:"+gameID).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis error getting match state for %s: %v", gameID, err)
		}
		return nil
	}

	var state MatchState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		log.Printf("Failed to unmarshal match state for %s: %v", gameID, err)
		return nil
	}
	return &state
}
