package models

import (
	"encoding/json"
	"time"
)

// VerificationStatus represents the document-authenticity assessment of a driver
type VerificationStatus string

const (
	VerificationPending      VerificationStatus = "pending"
	VerificationProbableReal VerificationStatus = "probable_real"
	VerificationProbableFake VerificationStatus = "probable_falso"
	VerificationManualReview VerificationStatus = "manual_review"
)

// Vehicle holds the car registered by a driver
type Vehicle struct {
	Plate string `json:"plate" gorm:"column:plate;uniqueIndex;not null"`
	Color string `json:"color" gorm:"column:color;not null"`
	Model string `json:"model" gorm:"column:model;not null"`
	Year  int    `json:"year" gorm:"column:year;not null"`
	Brand string `json:"brand" gorm:"column:brand;not null"`
}

// DriverDocuments holds the stored id-card scans. File paths never leave
// the server through listing endpoints.
type DriverDocuments struct {
	FrontPath  string    `json:"-" gorm:"column:front_path;not null"`
	BackPath   string    `json:"-" gorm:"column:back_path;not null"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"column:uploaded_at"`
}

// AdminReview is the manual override sub-record on a verification
type AdminReview struct {
	By      string     `json:"by,omitempty" gorm:"column:by"`
	At      *time.Time `json:"at,omitempty" gorm:"column:at"`
	Action  string     `json:"action,omitempty" gorm:"column:action"`
	Comment string     `json:"comment,omitempty" gorm:"column:comment"`
}

// Verification is the mutable result of automatic scoring plus any admin
// override. Details keeps the raw scorer response (or error diagnostics)
// as opaque JSON text.
type Verification struct {
	Status  VerificationStatus `json:"status" gorm:"column:status;default:'pending'"`
	Score   float64            `json:"score" gorm:"column:score;default:0"`
	Details string             `json:"-" gorm:"column:details;type:text"`

	Admin AdminReview `json:"admin" gorm:"embedded;embeddedPrefix:admin_"`
}

// DetailsJSON renders the opaque details payload for API responses. Raw
// text that is not valid JSON is wrapped as a JSON string.
func (v Verification) DetailsJSON() json.RawMessage {
	if v.Details == "" {
		return nil
	}
	if json.Valid([]byte(v.Details)) {
		return json.RawMessage(v.Details)
	}
	quoted, _ := json.Marshal(v.Details)
	return quoted
}

// MarshalJSON includes the details payload alongside the typed fields.
// The admin sub-record is dropped entirely until a reviewer has acted.
func (v Verification) MarshalJSON() ([]byte, error) {
	type alias Verification
	out := struct {
		alias
		Admin   *AdminReview    `json:"admin,omitempty"`
		Details json.RawMessage `json:"details,omitempty"`
	}{alias: alias(v), Details: v.DetailsJSON()}
	if v.Admin != (AdminReview{}) {
		out.Admin = &v.Admin
	}
	return json.Marshal(out)
}

// DriverProfile is the driver variant payload attached to a User. The
// profile keeps the user's id, so a promoted account stays addressable
// under the id it registered with.
type DriverProfile struct {
	ID     uint `json:"-" gorm:"primaryKey"`
	UserID uint `json:"-" gorm:"uniqueIndex;not null"`

	Vehicle   Vehicle         `json:"car" gorm:"embedded;embeddedPrefix:vehicle_"`
	Documents DriverDocuments `json:"documents" gorm:"embedded;embeddedPrefix:doc_"`

	DocumentsVerified bool         `json:"documents_verified" gorm:"default:false"`
	Verification      Verification `json:"verification" gorm:"embedded;embeddedPrefix:verification_"`

	Rating         float64 `json:"rating" gorm:"default:5"`
	CompletedTrips int     `json:"completed_trips" gorm:"default:0"`
	IsAvailable    bool    `json:"is_available" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
