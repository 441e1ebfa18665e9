package models

import (
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleUser   UserRole = "user"
	RoleDriver UserRole = "driver"
	RoleAdmin  UserRole = "admin"
)

type User struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	Handle       string   `json:"handle" gorm:"uniqueIndex;not null"`
	Phone        string   `json:"phone" gorm:"uniqueIndex;not null"`
	PasswordHash string   `json:"-" gorm:"not null"`
	Role         UserRole `json:"role" gorm:"not null;default:'user'"`
	Active       bool     `json:"active" gorm:"default:false"`

	// One-time phone verification code: only the bcrypt hash is stored.
	// Both fields are cleared once the phone is verified.
	CodeHash      string     `json:"-"`
	CodeExpiresAt *time.Time `json:"-"`

	// Role-specific payload, present iff Role == driver. Promotion creates
	// this row and flips Role in the same transaction, so a user is never
	// half-promoted.
	Driver *DriverProfile `json:"driver,omitempty" gorm:"foreignKey:UserID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDriver reports whether the user carries a driver payload.
func (u *User) IsDriver() bool {
	return u.Role == RoleDriver
}
