package models

import (
	"time"
)

// ProgressStatus is the lifecycle state of a user's quest ledger entry.
// not_started -> in_progress -> {completed, abandoned, expired}
// completed and expired are terminal; abandoned is resumable only via
// explicit quest reactivation.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusAbandoned  ProgressStatus = "abandoned"
	StatusExpired    ProgressStatus = "expired"
)

// UserQuestProgress is the durable ledger of a user's relationship to one
// quest. One row per (user, quest).
// Invariants:
//   - Progress == floor(100 * completed / total) whenever total > 0, else 0
//   - CompletionDate is non-nil iff Status == completed
//   - Status reaches completed only when Progress reaches 100
type UserQuestProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_user_quest;index;not null" json:"external_user_id"`
	QuestID        string `gorm:"uniqueIndex:idx_user_quest;index;not null" json:"quest_id"`

	Status         ProgressStatus `gorm:"type:varchar(20);default:'not_started';index" json:"status"`
	Progress       int            `gorm:"default:0" json:"progress"` // 0..100
	StartDate      *time.Time     `json:"start_date,omitempty"`
	CompletionDate *time.Time     `json:"completion_date,omitempty"`

	Quest *Quest `gorm:"foreignKey:QuestID;constraint:OnDelete:CASCADE" json:"quest,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// QuestChallengeCompletion is the append-only proof a user finished one
// challenge. One row per (user, challenge); never mutated, never deleted
// while the user exists. Evidence is free text (photo uploads are handled
// by the media service, not here).
type QuestChallengeCompletion struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_user_challenge;index;not null" json:"external_user_id"`
	ChallengeID    string `gorm:"uniqueIndex:idx_user_challenge;index;not null" json:"challenge_id"`
	QuestID        string `gorm:"index;not null" json:"quest_id"` // denormalized for per-quest counts

	CompletedAt time.Time `gorm:"autoCreateTime" json:"completed_at"`
	Evidence    string    `gorm:"type:text" json:"evidence"` // user's description of the work performed

	Challenge *Challenge `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"challenge,omitempty"`
}
