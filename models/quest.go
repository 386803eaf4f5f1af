package models

import (
	"time"

	"gorm.io/gorm"
)

// QuestType classifies where/how a quest is performed
type QuestType string

const (
	QuestTypeOutdoor QuestType = "outdoor"
	QuestTypeIndoor  QuestType = "indoor"
	QuestTypeSocial  QuestType = "social"
)

// Difficulty levels: 1=Easy, 2=Moderate, 3=Challenging, 4=Expert
const (
	DifficultyEasy        = 1
	DifficultyModerate    = 2
	DifficultyChallenging = 3
	DifficultyExpert      = 4
)

// Category groups quests for browsing/filtering
type Category struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Icon        string `gorm:"size:50" json:"icon"`
}

// Quest is a multi-step goal composed of ordered challenges.
// Identity is immutable; the challenge set and IsActive are admin-mutable,
// and every mutation must go through the matching consistency trigger so
// user ledgers stay in sync.
type Quest struct {
	ID               string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title            string     `gorm:"not null" json:"title"`
	Slug             string     `gorm:"uniqueIndex;not null" json:"slug"`
	Description      string     `gorm:"type:text" json:"description"`
	QuestType        QuestType  `gorm:"not null" json:"quest_type"`
	Difficulty       int        `gorm:"default:1" json:"difficulty"`
	Categories       []Category `gorm:"many2many:quest_categories" json:"categories,omitempty"`
	DurationMinutes  int        `json:"duration_minutes"` // estimated duration
	ExperienceReward int64      `gorm:"not null" json:"experience_reward"`
	IsActive         bool       `gorm:"default:true;index" json:"is_active"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`

	Challenges []Challenge `gorm:"constraint:OnDelete:CASCADE" json:"challenges,omitempty"`

	Timestamps
}

// Challenge is a single atomic task within a quest.
// Order is the unique ordering key within the parent quest.
type Challenge struct {
	ID               string `gorm:"primaryKey;type:uuid" json:"id"`
	QuestID          string `gorm:"index;uniqueIndex:idx_quest_order;not null" json:"quest_id"`
	Title            string `gorm:"not null" json:"title"`
	Description      string `gorm:"type:text" json:"description"`
	Order            int    `gorm:"column:challenge_order;uniqueIndex:idx_quest_order;not null" json:"order"`
	IsRequired       bool   `gorm:"default:true" json:"is_required"`
	ExperienceReward int64  `json:"experience_reward"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
