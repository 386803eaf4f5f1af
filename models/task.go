package models

import (
	"time"
)

// TaskStatus is the lifecycle state of a queued background task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// Well-known task names understood by the worker's handler registry.
const (
	TaskQuestCompleted     = "quest_completed"
	TaskWelcomeUser        = "welcome_user"
	TaskPartnershipCreated = "partnership_created"
	TaskDailyDigest        = "daily_digest"
)

// QueuedTask is one durable unit of background work (notification sends,
// digests). Rows live in the same database as the domain state so enqueues
// can share a transaction with the writes that cause them; delivery is
// at-least-once, so handlers must be idempotent.
type QueuedTask struct {
	ID      string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name    string     `gorm:"index;not null" json:"name"`
	Payload string     `gorm:"type:text" json:"payload"` // JSON object
	Status  TaskStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`

	Attempts    int        `gorm:"default:0" json:"attempts"`
	MaxAttempts int        `gorm:"default:3" json:"max_attempts"`
	RunAt       time.Time  `gorm:"index" json:"run_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
