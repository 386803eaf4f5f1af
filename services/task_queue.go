// services/task_queue.go
package services

import (
	"encoding/json"
	"fmt"
	"time"

	"quest-tracking-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskQueueService persists background work in the queued_tasks table.
// Tasks enqueued via a transaction handle commit atomically with the domain
// writes that caused them, so a quest can never flip to completed without
// its notification row (and vice versa).
type TaskQueueService struct {
	DB *gorm.DB
}

func NewTaskQueueService(db *gorm.DB) *TaskQueueService {
	return &TaskQueueService{DB: db}
}

const DefaultTaskMaxAttempts = 3

// Enqueue adds a named task with a JSON payload. Pass the surrounding
// transaction as tx when the task must commit with other writes; pass
// s.DB for standalone enqueues.
func (s *TaskQueueService) Enqueue(tx *gorm.DB, name string, payload map[string]interface{}) (*models.QueuedTask, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for task %s: %w", name, err)
	}

	task := &models.QueuedTask{
		ID:          uuid.NewString(),
		Name:        name,
		Payload:     string(body),
		Status:      models.TaskStatusPending,
		MaxAttempts: DefaultTaskMaxAttempts,
		RunAt:       time.Now(),
	}
	if err := tx.Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}
