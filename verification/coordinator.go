package verification

import (
	"encoding/json"
	"errors"
	"time"

	"malu-taxi-api/logger"
	"malu-taxi-api/models"
	"malu-taxi-api/statemachine"

	"gorm.io/gorm"
)

var (
	ErrDriverNotFound = errors.New("driver not found")
	ErrInvalidAction  = errors.New("action must be approve or reject")
)

// Review actions accepted by AdminReview
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Coordinator drives the document-verification workflow: it persists
// uploaded documents, runs the external scorer and applies the resulting
// status transition, and exposes the manual admin override and queue.
type Coordinator struct {
	db     *gorm.DB
	scorer *Scorer
	log    logger.ILogger
}

func New(db *gorm.DB, scorer *Scorer, log logger.ILogger) *Coordinator {
	return &Coordinator{db: db, scorer: scorer, log: log}
}

// Submit stores the document references on the driver profile and runs a
// fresh scoring attempt. The new verification record fully replaces the
// previous one, admin override included. Scorer unreachability or a
// non-success status is absorbed into a pending record: the caller still
// gets the updated profile back, never a scoring error.
func (co *Coordinator) Submit(driverID uint, frontPath, backPath, selfiePath string) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	if err := co.db.Where("user_id = ?", driverID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	profile.Documents = models.DriverDocuments{
		FrontPath:  frontPath,
		BackPath:   backPath,
		UploadedAt: time.Now(),
	}

	result, err := co.scorer.Score(frontPath, backPath, selfiePath)
	profile.Verification = co.interpret(result, err)

	switch {
	case profile.Verification.Status == models.VerificationPending:
		// Scoring never happened; documentsVerified keeps its prior value.
	default:
		profile.DocumentsVerified = statemachine.VerifiedAfter(profile.Verification.Status)
	}

	if err := co.db.Save(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// interpret maps a scorer round trip onto a fresh verification record.
func (co *Coordinator) interpret(result *ScorerResult, err error) models.Verification {
	if err != nil {
		co.log.Warning("verify service unreachable", logger.Error(err))
		details, _ := json.Marshal(map[string]interface{}{
			"error":   "verify_service_unreachable",
			"message": err.Error(),
		})
		return models.Verification{
			Status:  models.VerificationPending,
			Details: string(details),
		}
	}

	if !result.OK() {
		co.log.Warning("verify service returned error",
			logger.Int("status", result.HTTPStatus))
		var body interface{} = result.RawBody
		if json.Valid([]byte(result.RawBody)) {
			body = json.RawMessage(result.RawBody)
		}
		details, _ := json.Marshal(map[string]interface{}{
			"error":  "verify_service_error",
			"status": result.HTTPStatus,
			"body":   body,
		})
		return models.Verification{
			Status:  models.VerificationPending,
			Details: string(details),
		}
	}

	status := models.VerificationStatus(result.Verdict)
	switch status {
	case models.VerificationProbableReal, models.VerificationProbableFake, models.VerificationManualReview:
	default:
		// Success response without a usable verdict goes to a human.
		status = models.VerificationManualReview
	}
	return models.Verification{
		Status:  status,
		Score:   result.Score,
		Details: result.RawBody,
	}
}

// AdminReview applies a manual approve/reject decision. The override
// sub-record is always overwritten with the latest reviewer, timestamp,
// action and comment.
func (co *Coordinator) AdminReview(driverID uint, action, by, comment string) (*models.DriverProfile, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, ErrInvalidAction
	}

	var profile models.DriverProfile
	if err := co.db.Where("user_id = ?", driverID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	target := models.VerificationProbableReal
	if action == ActionReject {
		target = models.VerificationProbableFake
	}
	if err := statemachine.CanTransition(profile.Verification.Status, target, "admin"); err != nil {
		return nil, err
	}

	now := time.Now()
	profile.Verification.Admin = models.AdminReview{
		By:      by,
		At:      &now,
		Action:  action,
		Comment: comment,
	}
	profile.Verification.Status = target
	profile.DocumentsVerified = statemachine.VerifiedAfter(target)

	if err := co.db.Save(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// QueueEntry is one driver awaiting manual review. Document file paths
// are deliberately absent.
type QueueEntry struct {
	DriverID     uint                `json:"driver_id"`
	Handle       string              `json:"handle"`
	Phone        string              `json:"phone"`
	Vehicle      models.Vehicle      `json:"car"`
	UploadedAt   time.Time           `json:"documents_uploaded_at"`
	Verification models.Verification `json:"verification"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Queue lists drivers whose verification is flagged for a human: manual
// review verdicts and automatic rejections.
func (co *Coordinator) Queue() ([]QueueEntry, error) {
	var profiles []models.DriverProfile
	err := co.db.
		Where("verification_status IN ?", []string{
			string(models.VerificationManualReview),
			string(models.VerificationProbableFake),
		}).
		Order("id asc").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	userIDs := make([]uint, 0, len(profiles))
	for _, p := range profiles {
		userIDs = append(userIDs, p.UserID)
	}
	var users []models.User
	if len(userIDs) > 0 {
		if err := co.db.Find(&users, userIDs).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	entries := make([]QueueEntry, 0, len(profiles))
	for _, p := range profiles {
		user, ok := byID[p.UserID]
		if !ok {
			// Orphaned profile; should not happen, keep the queue serving.
			co.log.Warning("verify queue entry without a user row",
				logger.Uint("driver_id", p.UserID))
			continue
		}
		entries = append(entries, QueueEntry{
			DriverID:     p.UserID,
			Handle:       user.Handle,
			Phone:        user.Phone,
			Vehicle:      p.Vehicle,
			UploadedAt:   p.Documents.UploadedAt,
			Verification: p.Verification,
			CreatedAt:    p.CreatedAt,
		})
	}
	return entries, nil
}
