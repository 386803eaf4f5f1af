package models

import (
	"time"

	"gorm.io/gorm"
)

// QuestUser is a local snapshot of user data needed for quest tracking.
// Owned and managed solely by the Quest service.
// Populated via sync worker from the Profile Service's user table.
// ExperiencePoints lives here because this service is the system of record
// for quest rewards; it is only ever mutated via atomic increments.
type QuestUser struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's UUID
	Username       string  `gorm:"index;not null" json:"username"`
	Email          string  `json:"email,omitempty"`
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Bio            *string `json:"bio,omitempty"`

	ExperiencePoints int64 `gorm:"default:0" json:"experience_points"`
	Level            int   `gorm:"default:1" json:"level"`

	// Staff accounts never get quest ledgers (admin-only principals)
	IsStaff bool `gorm:"default:false" json:"is_staff"`

	// Notification preferences (mirrored from profile service)
	IsSubscribed bool `gorm:"default:false" json:"is_subscribed"`
	DigestOptIn  bool `gorm:"default:false" json:"digest_opt_in"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
