package routes

import (
	"log"
	"net/http"

	"codebattle/handlers"
	"codebattle/middleware"
	"codebattle/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	challengeHandler *handlers.ChallengeHandler,
	matchHandler *handlers.MatchHandler,
	executeHandler *handlers.ExecuteHandler,
	hub *services.Hub,
	jwtSecret string,
) {
	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// User profile
			protected.GET("/auth/profile", authHandler.GetProfile)

			// Challenge routes
			challenges := protected.Group("/challenges")
			{
				challenges.GET("", challengeHandler.GetUserChallenges)
				challenges.POST("", challengeHandler.CreateChallenge)
				challenges.GET("/:id", challengeHandler.GetChallengeByID)
				challenges.PUT("/:id", challengeHandler.UpdateChallenge)
				challenges.DELETE("/:id", challengeHandler.DeleteChallenge)
			}
		}

		// Public match routes: players identify by their client-persisted
		// user id, not an account.
		matches := api.Group("/matches")
		{
			matches.POST("", matchHandler.CreateMatch)
			matches.POST("/:gameID/join", matchHandler.JoinMatch)
			matches.GET("/:gameID", matchHandler.GetMatch)
			matches.GET("/:gameID/state", matchHandler.GetMatchState)
		}
	}

	// Query-execution endpoint consumed by the battleground editor.
	router.GET("/execute-sql/query", executeHandler.ExecuteQuery)

	// WebSocket endpoint for the real-time battleground protocol. The client
	// announces who it is via joinGame/rejoinGame after connecting.
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
			return
		}

		hub.RegisterClient(conn)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
