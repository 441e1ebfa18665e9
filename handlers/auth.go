package handlers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"malu-taxi-api/config"
	"malu-taxi-api/gateway"
	"malu-taxi-api/logger"
	"malu-taxi-api/middleware"
	"malu-taxi-api/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone" binding:"required"`
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type LoginRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// generateCode returns a random six-digit one-time code
func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// Register creates an inactive account and sends a one-time code to its
// phone. Registration is refused outright while the messaging gateway is
// down: there is no queueing of pending registrations.
func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Connectivity is re-checked on every call, never cached.
	if Gateway.Status() != gateway.StatusConnected {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Registration service is unavailable right now"})
		return
	}

	var existing models.User
	if result := config.DB.Where("handle = ? OR phone = ?", req.Handle, req.Phone).First(&existing); result.Error == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Handle or phone already registered"})
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	code := generateCode()
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash verification code"})
		return
	}

	expiration := time.Now().Add(time.Duration(Cfg.CodeExpirationMinutes) * time.Minute)
	user := models.User{
		Handle:        req.Handle,
		Phone:         req.Phone,
		PasswordHash:  string(passwordHash),
		Role:          models.RoleUser,
		CodeHash:      string(codeHash),
		CodeExpiresAt: &expiration,
	}

	if err := config.DB.Create(&user).Error; err != nil {
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Handle or phone already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	message := fmt.Sprintf("Welcome to Malu! 🚕\n\nYour verification code is: *%s*\n\nIt expires in %d minutes.",
		code, Cfg.CodeExpirationMinutes)
	if err := Gateway.Send(req.Phone, message); err != nil {
		// The account is already persisted at this point; there is no
		// compensating delete, the user has to register again later.
		log.Error("failed to deliver verification code",
			logger.String("phone", req.Phone), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification code"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created. A verification code was sent to the registered phone",
		"user": gin.H{
			"id":     user.ID,
			"handle": user.Handle,
			"phone":  user.Phone,
		},
	})
}

// VerifyPhone activates an account with the one-time code
func VerifyPhone(c *gin.Context) {
	var req VerifyPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := config.DB.Where("phone = ?", req.Phone).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if user.Active {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This account is already verified"})
		return
	}
	if user.CodeExpiresAt == nil || time.Now().After(*user.CodeExpiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The code has expired. Request a new one"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.CodeHash), []byte(req.Code)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incorrect code"})
		return
	}

	err := config.DB.Model(&user).Updates(map[string]interface{}{
		"active":          true,
		"code_hash":       "",
		"code_expires_at": nil,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account verified successfully"})
}

// Login authenticates a user and returns a JWT
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := config.DB.Where("handle = ?", req.Handle).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid handle or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid handle or password"})
		return
	}

	token, err := middleware.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user": gin.H{
			"id":     user.ID,
			"handle": user.Handle,
			"role":   user.Role,
		},
	})
}

// GetProfile returns the authenticated user's profile
func GetProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var user models.User
	if err := config.DB.Preload("Driver").First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
