package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"malu-taxi-api/config"
	"malu-taxi-api/gateway"
	"malu-taxi-api/handlers"
	"malu-taxi-api/logger"
	"malu-taxi-api/routes"
	"malu-taxi-api/social"
	"malu-taxi-api/verification"

	"github.com/gin-gonic/gin"
)

func main() {
	// Set Gin mode
	mode := os.Getenv("GIN_MODE")
	if mode == "" {
		gin.SetMode(gin.DebugMode)
	}

	cfg := config.Load()

	// Initialize database
	config.InitDB(cfg.DatabasePath)

	// Messaging gateway: a single goroutine owns the connectivity status
	gw := gateway.NewClient(
		cfg.GatewayBaseURL,
		time.Duration(cfg.GatewayPollIntervalSeconds)*time.Second,
		logger.New("gateway"),
	)
	defer gw.Close()

	scorer := verification.NewScorer(cfg.VerifyServiceURL,
		time.Duration(cfg.VerifyTimeoutSeconds)*time.Second)
	verifier := verification.New(config.DB, scorer, logger.New("verification"))
	graph := social.New(config.DB)

	handlers.Setup(cfg, gw, verifier, graph)

	// Create Gin router with default middleware (logger + recovery)
	r := gin.Default()

	// CORS middleware for frontend integration
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Malu Taxi API",
			"version": "1.0.0",
			"gateway": gw.Status(),
		})
	})

	// Welcome
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "🚕 Welcome to the Malu Taxi API",
			"docs":    "/api/state-machine",
			"health":  "/health",
			"roles":   []string{"user", "driver", "admin"},
		})
	})

	// Register all routes
	routes.SetupRoutes(r)

	// Start server
	port := strconv.Itoa(cfg.Port)
	log.Printf("🚀 Server running on http://localhost:%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
