package services

import (
	"encoding/json"
	"errors"

	"codebattle/models"

	"gorm.io/gorm"
)

type ChallengeService struct {
	db *gorm.DB
}

func NewChallengeService(db *gorm.DB) *ChallengeService {
	return &ChallengeService{db: db}
}

type CreateChallengeRequest struct {
	Title         string                  `json:"title" binding:"required"`
	Prompt        string                  `json:"prompt" binding:"required"`
	Subject       string                  `json:"subject" binding:"required,oneof=sql python"`
	ChallengeType string                  `json:"challenge_type" binding:"required"`
	CustomMinutes int                     `json:"custom_minutes"`
	ExpectedRows  []map[string]any        `json:"expected_rows"`
	TestCases     []CreateTestCaseRequest `json:"test_cases"`
}

type CreateTestCaseRequest struct {
	Input          string `json:"input" binding:"required"`
	ExpectedOutput string `json:"expected_output" binding:"required"`
	Order          int    `json:"order"`
}

type UpdateChallengeRequest struct {
	Title         string                  `json:"title"`
	Prompt        string                  `json:"prompt"`
	ChallengeType string                  `json:"challenge_type"`
	CustomMinutes int                     `json:"custom_minutes"`
	ExpectedRows  []map[string]any        `json:"expected_rows"`
	TestCases     []CreateTestCaseRequest `json:"test_cases"`
}

func (s *ChallengeService) CreateChallenge(userID uint, req *CreateChallengeRequest) (*models.Challenge, error) {
	// A SQL challenge grades against expected rows, a Python one against
	// test cases; each subject needs its own grading data.
	switch req.Subject {
	case "sql":
		if len(req.ExpectedRows) == 0 {
			return nil, errors.New("sql challenges need expected rows")
		}
	case "python":
		if len(req.TestCases) == 0 {
			return nil, errors.New("python challenges need at least one test case")
		}
	}

	expectedJSON, err := json.Marshal(req.ExpectedRows)
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	challenge := models.Challenge{
		Title:         req.Title,
		Prompt:        req.Prompt,
		Subject:       req.Subject,
		ChallengeType: req.ChallengeType,
		CustomMinutes: req.CustomMinutes,
		ExpectedRows:  string(expectedJSON),
		UserID:        userID,
	}
	if err := tx.Create(&challenge).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for i, tcReq := range req.TestCases {
		order := tcReq.Order
		if order == 0 {
			order = i + 1
		}
		testCase := models.TestCase{
			ChallengeID:    challenge.ID,
			Input:          tcReq.Input,
			ExpectedOutput: tcReq.ExpectedOutput,
			Order:          order,
		}
		if err := tx.Create(&testCase).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.GetChallengeByID(challenge.ID, userID)
}

func (s *ChallengeService) GetUserChallenges(userID uint) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.db.Where("user_id = ?", userID).
		Preload("TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_cases.order")
		}).
		Order("created_at DESC").
		Find(&challenges).Error
	return challenges, err
}

func (s *ChallengeService) GetChallengeByID(challengeID uint, userID uint) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.db.Where("id = ? AND user_id = ?", challengeID, userID).
		Preload("TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_cases.order")
		}).
		First(&challenge).Error
	return &challenge, err
}

func (s *ChallengeService) UpdateChallenge(challengeID uint, userID uint, req *UpdateChallengeRequest) (*models.Challenge, error) {
	challenge, err := s.GetChallengeByID(challengeID, userID)
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if req.Title != "" {
		challenge.Title = req.Title
	}
	if req.Prompt != "" {
		challenge.Prompt = req.Prompt
	}
	if req.ChallengeType != "" {
		challenge.ChallengeType = req.ChallengeType
	}
	if req.CustomMinutes > 0 {
		challenge.CustomMinutes = req.CustomMinutes
	}
	if req.ExpectedRows != nil {
		expectedJSON, err := json.Marshal(req.ExpectedRows)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		challenge.ExpectedRows = string(expectedJSON)
	}

	if err := tx.Save(challenge).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Replace all test cases when new ones are provided.
	if req.TestCases != nil {
		if err := tx.Where("challenge_id = ?", challengeID).Delete(&models.TestCase{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		for i, tcReq := range req.TestCases {
			order := tcReq.Order
			if order == 0 {
				order = i + 1
			}
			testCase := models.TestCase{
				ChallengeID:    challenge.ID,
				Input:          tcReq.Input,
				ExpectedOutput: tcReq.ExpectedOutput,
				Order:          order,
			}
			if err := tx.Create(&testCase).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.GetChallengeByID(challenge.ID, userID)
}

func (s *ChallengeService) DeleteChallenge(challengeID uint, userID uint) error {
	if _, err := s.GetChallengeByID(challengeID, userID); err != nil {
		return err
	}
	return s.db.Delete(&models.Challenge{}, challengeID).Error
}
