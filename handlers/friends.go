package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"malu-taxi-api/config"
	"malu-taxi-api/middleware"
	"malu-taxi-api/models"
	"malu-taxi-api/social"

	"github.com/gin-gonic/gin"
)

type FriendRequestBody struct {
	ToID   uint   `json:"to_id"`
	Handle string `json:"handle"`
}

// SendFriendRequest creates a pending request addressed by id or handle
func SendFriendRequest(c *gin.Context) {
	meID := middleware.GetUserID(c)

	var req FriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	toID := req.ToID
	if toID == 0 {
		if req.Handle == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Provide to_id or handle"})
			return
		}
		var target models.User
		if err := config.DB.Where("handle = ?", req.Handle).First(&target).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		toID = target.ID
	}

	request, err := Social.Request(meID, toID)
	if err != nil {
		switch {
		case errors.Is(err, social.ErrSelfRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, social.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, social.ErrAlreadyFriends), errors.Is(err, social.ErrDuplicateRequest):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send friend request"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Friend request sent",
		"request": request,
	})
}

type FriendResponseBody struct {
	Action string `json:"action" binding:"required"`
}

// RespondFriendRequest accepts or declines the pending request from the
// user in the path
func RespondFriendRequest(c *gin.Context) {
	meID := middleware.GetUserID(c)

	fromID, err := strconv.ParseUint(c.Param("fromId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var req FriendResponseBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := Social.Respond(meID, uint(fromID), req.Action)
	if err != nil {
		switch {
		case errors.Is(err, social.ErrInvalidAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, social.ErrNoPendingRequest):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to respond to friend request"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Friend request " + string(request.Status),
		"request": request,
	})
}

// RemoveFriend deletes the friendship edge with the user in the path.
// Removing an absent edge succeeds quietly.
func RemoveFriend(c *gin.Context) {
	meID := middleware.GetUserID(c)

	otherID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	if err := Social.Remove(meID, uint(otherID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove friendship"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Friendship removed"})
}

// ListFriends returns the caller's friends
func ListFriends(c *gin.Context) {
	meID := middleware.GetUserID(c)

	friends, err := Social.Friends(meID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list friends"})
		return
	}

	out := make([]gin.H, 0, len(friends))
	for _, f := range friends {
		out = append(out, gin.H{
			"id":     f.ID,
			"handle": f.Handle,
			"role":   f.Role,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "friends": out})
}

// ListFriendRequests returns the caller's pending incoming requests
func ListFriendRequests(c *gin.Context) {
	meID := middleware.GetUserID(c)

	requests, err := Social.Pending(meID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list friend requests"})
		return
	}

	out := make([]gin.H, 0, len(requests))
	for _, r := range requests {
		out = append(out, gin.H{
			"id":          r.ID,
			"from_id":     r.FromID,
			"from_handle": r.From.Handle,
			"created_at":  r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "requests": out})
}
