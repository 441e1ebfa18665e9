package models

import "time"

// FriendRequestStatus tracks the lifecycle of a friend request
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

// FriendRequest is a directed proposal stored on the recipient's inbox.
// Acceptance turns it into a symmetric Friendship edge.
type FriendRequest struct {
	ID          uint                `json:"id" gorm:"primaryKey"`
	ToID        uint                `json:"to_id" gorm:"index;not null"`
	FromID      uint                `json:"from_id" gorm:"index;not null"`
	Status      FriendRequestStatus `json:"status" gorm:"not null;default:'pending'"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`

	From User `json:"from,omitempty" gorm:"foreignKey:FromID"`
}

// Friendship is one direction of an accepted edge; every edge is stored
// as two rows so either side can list friends with a single lookup.
type Friendship struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    uint      `json:"-" gorm:"uniqueIndex:idx_friend_edge;not null"`
	FriendID  uint      `json:"-" gorm:"uniqueIndex:idx_friend_edge;not null"`
	CreatedAt time.Time `json:"-"`
}
