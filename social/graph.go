package social

import (
	"errors"
	"time"

	"malu-taxi-api/models"

	"gorm.io/gorm"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrDuplicateRequest = errors.New("a pending friend request already exists")
	ErrNoPendingRequest = errors.New("no pending friend request from that user")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidAction    = errors.New("action must be accept or decline")
)

// Response actions accepted by Respond
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// Graph manages friend requests and the symmetric friendship edges they
// produce. Multi-row mutations (accept, remove) run inside a single
// transaction so a crash or concurrent writer cannot leave one-sided
// edges behind.
type Graph struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Graph {
	return &Graph{db: db}
}

// Request appends a pending friend request to the recipient's inbox.
// The duplicate-pending check and the insert share one transaction.
func (g *Graph) Request(fromID, toID uint) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrSelfRequest
	}

	var request models.FriendRequest
	err := g.db.Transaction(func(tx *gorm.DB) error {
		var recipient models.User
		if err := tx.First(&recipient, toID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		var edges int64
		tx.Model(&models.Friendship{}).
			Where("user_id = ? AND friend_id = ?", fromID, toID).
			Count(&edges)
		if edges > 0 {
			return ErrAlreadyFriends
		}

		var pending int64
		tx.Model(&models.FriendRequest{}).
			Where("to_id = ? AND from_id = ? AND status = ?", toID, fromID, models.FriendRequestPending).
			Count(&pending)
		if pending > 0 {
			return ErrDuplicateRequest
		}

		request = models.FriendRequest{
			ToID:   toID,
			FromID: fromID,
			Status: models.FriendRequestPending,
		}
		return tx.Create(&request).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// Respond resolves the most recent pending request from fromID in meID's
// inbox. Accepting records the response and inserts both edge rows
// idempotently in one transaction; declining only records the response.
func (g *Graph) Respond(meID, fromID uint, action string) (*models.FriendRequest, error) {
	if action != ActionAccept && action != ActionDecline {
		return nil, ErrInvalidAction
	}

	var request models.FriendRequest
	err := g.db.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("to_id = ? AND from_id = ? AND status = ?", meID, fromID, models.FriendRequestPending).
			Order("created_at desc").
			First(&request).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoPendingRequest
			}
			return err
		}

		now := time.Now()
		request.RespondedAt = &now
		if action == ActionDecline {
			request.Status = models.FriendRequestDeclined
			return tx.Save(&request).Error
		}

		request.Status = models.FriendRequestAccepted
		if err := tx.Save(&request).Error; err != nil {
			return err
		}
		// FirstOrCreate keeps the edge insert idempotent if a racing
		// accept already added it.
		for _, edge := range [][2]uint{{meID, fromID}, {fromID, meID}} {
			var f models.Friendship
			err := tx.Where(models.Friendship{UserID: edge[0], FriendID: edge[1]}).
				FirstOrCreate(&f).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// Remove deletes the friendship edge in both directions. A missing edge
// is not an error.
func (g *Graph) Remove(meID, otherID uint) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND friend_id = ?", meID, otherID).
			Delete(&models.Friendship{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND friend_id = ?", otherID, meID).
			Delete(&models.Friendship{}).Error
	})
}

// Friends lists the users on the other end of every edge owned by userID.
func (g *Graph) Friends(userID uint) ([]models.User, error) {
	var friends []models.User
	err := g.db.
		Joins("JOIN friendships ON friendships.friend_id = users.id").
		Where("friendships.user_id = ?", userID).
		Order("users.handle asc").
		Find(&friends).Error
	return friends, err
}

// Pending lists the incoming requests still awaiting a response.
func (g *Graph) Pending(userID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := g.db.
		Preload("From").
		Where("to_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at asc").
		Find(&requests).Error
	return requests, err
}
