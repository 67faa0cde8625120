package main

import (
	"log"

	"codebattle/config"
	"codebattle/handlers"
	"codebattle/middleware"
	"codebattle/models"
	"codebattle/routes"
	"codebattle/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.TestCase{},
		&models.Match{},
		&models.MatchPlayer{},
		&models.MatchResult{},
		&models.Submission{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	challengeService := services.NewChallengeService(db)
	matchService := services.NewMatchService(db, redisClient)

	// Initialize WebSocket hub
	hub := services.NewHub(matchService)
	go hub.Run()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	matchHandler := handlers.NewMatchHandler(matchService)
	executeHandler := handlers.NewExecuteHandler(db)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, challengeHandler, matchHandler, executeHandler, hub, cfg.JWTSecret)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
