package handlers

import (
	"net/http"

	"malu-taxi-api/gateway"

	"github.com/gin-gonic/gin"
)

// GatewayStatus reports the messaging session state — admin only
func GatewayStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": Gateway.Status()})
}

type GatewaySendRequest struct {
	Number  string `json:"number" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// GatewaySend pushes an arbitrary message through the gateway — admin only
func GatewaySend(c *gin.Context) {
	var req GatewaySendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if Gateway.Status() != gateway.StatusConnected {
		c.JSON(http.StatusConflict, gin.H{"error": "The messaging session is not active"})
		return
	}

	if err := Gateway.Send(req.Number, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message sent successfully"})
}
