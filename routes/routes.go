package routes

import (
	"malu-taxi-api/handlers"
	"malu-taxi-api/middleware"
	"malu-taxi-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		// Registration & auth
		public.POST("/auth/register", handlers.Register)
		public.POST("/auth/verify-phone", handlers.VerifyPhone)
		public.POST("/auth/login", handlers.Login)

		// Drivers (no auth needed)
		public.GET("/drivers/available", handlers.ListAvailableDrivers)
		public.GET("/drivers/:id", handlers.GetDriver)

		// State machine info (great for docs/Postman)
		public.GET("/state-machine", handlers.GetStateMachineInfo)
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/profile", handlers.GetProfile)
		auth.POST("/become-driver", handlers.BecomeDriver)
		auth.GET("/drivers/:id/document", handlers.GetDriverDocument)

		// Friends
		auth.POST("/friends/requests", handlers.SendFriendRequest)
		auth.PUT("/friends/requests/:fromId", handlers.RespondFriendRequest)
		auth.DELETE("/friends/:id", handlers.RemoveFriend)
		auth.GET("/friends", handlers.ListFriends)
		auth.GET("/friends/requests", handlers.ListFriendRequests)
	}

	// ── Driver routes ──────────────────────────────────────────────
	driver := r.Group("/api/driver")
	driver.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleDriver))
	{
		driver.PATCH("/availability", handlers.UpdateAvailability)
		driver.POST("/verify-documents", handlers.VerifyDocuments)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/verify-queue", handlers.VerifyQueue)
		admin.PATCH("/verify/:id", handlers.VerifyDecision)
		admin.GET("/gateway/status", handlers.GatewayStatus)
		admin.POST("/gateway/send", handlers.GatewaySend)
	}
}
