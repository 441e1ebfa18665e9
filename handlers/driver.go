package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"malu-taxi-api/config"
	"malu-taxi-api/middleware"
	"malu-taxi-api/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sanitizeHandle keeps letters, digits, dashes and underscores so handles
// are safe as directory names.
func sanitizeHandle(handle string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, handle)
}

// saveUpload stores one multipart file under the caller's upload folder
// with a unique name. Returns "" when the field is absent.
func saveUpload(c *gin.Context, field, handle string) (string, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(Cfg.UploadDir, sanitizeHandle(handle))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, "idcard-"+uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// driverSummary is the public shape of a driver, document paths excluded
func driverSummary(user *models.User, profile *models.DriverProfile) gin.H {
	return gin.H{
		"id":                 user.ID,
		"handle":             user.Handle,
		"phone":              user.Phone,
		"role":               user.Role,
		"active":             user.Active,
		"car":                profile.Vehicle,
		"documents_verified": profile.DocumentsVerified,
		"is_available":       profile.IsAvailable,
		"rating":             profile.Rating,
		"completed_trips":    profile.CompletedTrips,
		"created_at":         user.CreatedAt,
	}
}

// BecomeDriver promotes the authenticated user to a driver account. The
// profile insert and the role flip happen in one transaction, after which
// the documents go through the automatic verification pipeline. Every
// rejected precondition deletes the uploads saved so far.
func BecomeDriver(c *gin.Context) {
	userID := middleware.GetUserID(c)
	handle := middleware.GetHandle(c)

	frontPath, frontErr := saveUpload(c, "idCardFront", handle)
	backPath, backErr := saveUpload(c, "idCardBack", handle)
	if frontErr != nil || backErr != nil {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both the front and back of the id card are required"})
		return
	}

	plate := strings.ToUpper(strings.TrimSpace(c.PostForm("plate")))
	color := c.PostForm("color")
	model := c.PostForm("model")
	yearStr := c.PostForm("year")
	brand := c.PostForm("brand")
	if plate == "" || color == "" || model == "" || yearStr == "" || brand == "" {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusBadRequest, gin.H{"error": "All vehicle fields are required: plate, color, model, year, brand"})
		return
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vehicle year must be a number"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if !user.Active {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusForbidden, gin.H{"error": "You must verify your phone before registering as a driver"})
		return
	}
	if user.Role == models.RoleDriver {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusConflict, gin.H{"error": "This account is already a driver"})
		return
	}

	var plateCount int64
	config.DB.Model(&models.DriverProfile{}).
		Where("vehicle_plate = ?", plate).
		Count(&plateCount)
	if plateCount > 0 {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusConflict, gin.H{"error": "This car plate is already registered"})
		return
	}

	profile := models.DriverProfile{
		UserID: user.ID,
		Vehicle: models.Vehicle{
			Plate: plate,
			Color: color,
			Model: model,
			Year:  year,
			Brand: brand,
		},
		Documents: models.DriverDocuments{
			FrontPath: frontPath,
			BackPath:  backPath,
		},
		Rating: 5,
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		return tx.Model(&user).Update("role", models.RoleDriver).Error
	})
	if err != nil {
		cleanupFiles(frontPath, backPath)
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "This car plate is already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register driver"})
		return
	}

	// Automatic verification; scorer failures leave the record pending,
	// registration still succeeds.
	updated, err := Verifier.Submit(user.ID, frontPath, backPath, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record verification"})
		return
	}

	summary := driverSummary(&user, updated)
	summary["role"] = models.RoleDriver
	summary["verification"] = updated.Verification
	c.JSON(http.StatusCreated, gin.H{
		"message": "You are now registered as a driver",
		"driver":  summary,
	})
}

// parseDriverID parses the :id path param; anything non-numeric is
// treated as an unknown driver.
func parseDriverID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}

// findDriver loads a driver user with its profile by user id
func findDriver(id uint) (*models.User, *models.DriverProfile, error) {
	var user models.User
	if err := config.DB.Preload("Driver").
		Where("role = ?", models.RoleDriver).
		First(&user, id).Error; err != nil {
		return nil, nil, err
	}
	if user.Driver == nil {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return &user, user.Driver, nil
}

// GetDriver returns the public summary of a driver
func GetDriver(c *gin.Context) {
	id, err := parseDriverID(c)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
		return
	}
	user, profile, err := findDriver(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": driverSummary(user, profile)})
}

// GetDriverDocument downloads one of the stored id-card scans. Only an
// admin or the driver itself may fetch them.
func GetDriverDocument(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	callerRole := middleware.GetRole(c)

	subjectID, err := parseDriverID(c)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
		return
	}

	_, profile, err := findDriver(subjectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
		return
	}

	if callerRole != models.RoleAdmin && callerID != subjectID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this document"})
		return
	}

	path := profile.Documents.FrontPath
	if strings.ToLower(c.Query("side")) == "back" {
		path = profile.Documents.BackPath
	}
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document file not found"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document file not found"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

type AvailabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// UpdateAvailability flips the caller's availability flag
func UpdateAvailability(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var profile models.DriverProfile
	if err := config.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
		return
	}

	if err := config.DB.Model(&profile).Update("is_available", *req.IsAvailable).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update availability"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Availability updated",
		"driver": gin.H{
			"id":           userID,
			"is_available": *req.IsAvailable,
		},
	})
}

// ListAvailableDrivers returns every active, verified, available driver.
// Document paths are never serialized here.
func ListAvailableDrivers(c *gin.Context) {
	var users []models.User
	config.DB.Preload("Driver").
		Joins("JOIN driver_profiles ON driver_profiles.user_id = users.id").
		Where("driver_profiles.is_available = ? AND driver_profiles.documents_verified = ? AND users.active = ?",
			true, true, true).
		Order("users.id asc").
		Find(&users)

	drivers := make([]gin.H, 0, len(users))
	for i := range users {
		if users[i].Driver == nil {
			continue
		}
		drivers = append(drivers, gin.H{
			"id":              users[i].ID,
			"handle":          users[i].Handle,
			"phone":           users[i].Phone,
			"car":             users[i].Driver.Vehicle,
			"rating":          users[i].Driver.Rating,
			"completed_trips": users[i].Driver.CompletedTrips,
			"is_available":    users[i].Driver.IsAvailable,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(drivers),
		"drivers": drivers,
	})
}

// VerifyDocuments re-runs the scoring pipeline with freshly uploaded
// documents (and an optional selfie) and returns the raw outcome.
func VerifyDocuments(c *gin.Context) {
	userID := middleware.GetUserID(c)
	handle := middleware.GetHandle(c)

	var profile models.DriverProfile
	if err := config.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
		return
	}

	frontPath, frontErr := saveUpload(c, "idCardFront", handle)
	backPath, backErr := saveUpload(c, "idCardBack", handle)
	if frontErr != nil || backErr != nil {
		cleanupFiles(frontPath, backPath)
		c.JSON(http.StatusBadRequest, gin.H{"error": "idCardFront and idCardBack are required"})
		return
	}
	selfiePath, _ := saveUpload(c, "selfie", handle)

	updated, err := Verifier.Submit(userID, frontPath, backPath, selfiePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Documents submitted for verification",
		"verification":       updated.Verification,
		"documents_verified": updated.DocumentsVerified,
	})
}
