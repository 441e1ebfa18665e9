package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"malu-taxi-api/middleware"
	"malu-taxi-api/verification"

	"github.com/gin-gonic/gin"
)

// VerifyQueue lists drivers flagged for manual review — admin only
func VerifyQueue(c *gin.Context) {
	queue, err := Verifier.Queue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load verification queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(queue), "queue": queue})
}

type VerifyDecisionRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// VerifyDecision applies an approve/reject override on a driver — admin only
func VerifyDecision(c *gin.Context) {
	driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver id"})
		return
	}

	var req VerifyDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := Verifier.AdminReview(uint(driverID), req.Action, middleware.GetHandle(c), req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, verification.ErrDriverNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply decision"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Decision applied",
		"driver": gin.H{
			"id":                 profile.UserID,
			"verification":       profile.Verification,
			"documents_verified": profile.DocumentsVerified,
		},
	})
}
