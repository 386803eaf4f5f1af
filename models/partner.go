package models

import (
	"time"

	"gorm.io/gorm"
)

// PartnerOrganization represents game parks, eco-organizations and other
// sponsors that back quests.
type PartnerOrganization struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	Website      string `json:"website,omitempty"`
	ContactEmail string `gorm:"not null" json:"contact_email"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	Partnerships []Partnership `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE" json:"partnerships,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Partnership links a sponsoring organization to one quest.
type Partnership struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	OrganizationID string     `gorm:"index;not null" json:"organization_id"`
	QuestID        string     `gorm:"index;not null" json:"quest_id"`
	Benefits       string     `gorm:"type:text" json:"benefits"` // benefits for users completing this quest through the partner
	IsFeatured     bool       `gorm:"default:false" json:"is_featured"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`

	Organization *PartnerOrganization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Quest        *Quest               `gorm:"foreignKey:QuestID;constraint:OnDelete:CASCADE" json:"quest,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
