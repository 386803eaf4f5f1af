// workers/task_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"quest-tracking-system/models"

	"gorm.io/gorm"
)

// TaskHandler processes one queued task's payload. Delivery is
// at-least-once, so handlers must tolerate redelivery.
type TaskHandler func(ctx context.Context, payload map[string]interface{}) error

// TaskWorker drains the queued_tasks table on a short poll interval.
// Claims are status-guarded updates, failed runs are rescheduled with
// exponential backoff until MaxAttempts, then parked as failed with the
// last error kept for manual replay.
type TaskWorker struct {
	DB          *gorm.DB
	Interval    time.Duration
	TaskTimeout time.Duration // per-task ceiling; a wedged handler is killed and retried
	BackoffBase time.Duration

	handlers map[string]TaskHandler
}

func NewTaskWorker(db *gorm.DB) *TaskWorker {
	return &TaskWorker{
		DB:          db,
		Interval:    5 * time.Second,
		TaskTimeout: 25 * time.Minute,
		BackoffBase: 1 * time.Minute,
		handlers:    make(map[string]TaskHandler),
	}
}

// Register binds a handler to a task name. Tasks with no handler fail
// permanently on first claim.
func (w *TaskWorker) Register(name string, handler TaskHandler) {
	w.handlers[name] = handler
}

func (w *TaskWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Task Worker (queued_tasks drain)…")
	go w.run(ctx)
}

func (w *TaskWorker) run(ctx context.Context) {
	// Drain whatever is already pending before the first tick
	w.Drain(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Drain(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Task Worker stopped")
			return
		}
	}
}

// Drain claims and runs due tasks until the queue has none left.
func (w *TaskWorker) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := w.claimNext()
		if err != nil {
			log.Printf("❌ [TASKS] Claim failed: %v", err)
			return
		}
		if task == nil {
			return
		}
		w.process(ctx, task)
	}
}

// claimNext picks the oldest due pending task and marks it running. The
// status guard on the UPDATE makes concurrent workers safe: losing the race
// just means claiming the next row on the following iteration.
func (w *TaskWorker) claimNext() (*models.QueuedTask, error) {
	for {
		var task models.QueuedTask
		err := w.DB.
			Where("status = ? AND run_at <= ?", models.TaskStatusPending, time.Now()).
			Order("run_at ASC").
			First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		now := time.Now()
		res := w.DB.Model(&models.QueuedTask{}).
			Where("id = ? AND status = ?", task.ID, models.TaskStatusPending).
			Updates(map[string]interface{}{
				"status":     models.TaskStatusRunning,
				"started_at": now,
				"attempts":   gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the claim race; that row is no longer pending, so
			// re-query for the next candidate
			continue
		}

		task.Status = models.TaskStatusRunning
		task.Attempts++
		task.StartedAt = &now
		return &task, nil
	}
}

func (w *TaskWorker) process(ctx context.Context, task *models.QueuedTask) {
	handler, ok := w.handlers[task.Name]
	if !ok {
		w.fail(task, fmt.Errorf("no handler registered for task %q", task.Name))
		return
	}

	payload := map[string]interface{}{}
	if task.Payload != "" {
		if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
			w.fail(task, fmt.Errorf("malformed payload: %w", err))
			return
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, w.TaskTimeout)
	defer cancel()

	if err := handler(runCtx, payload); err != nil {
		w.retryOrFail(task, err)
		return
	}

	now := time.Now()
	if err := w.DB.Model(task).Updates(map[string]interface{}{
		"status":      models.TaskStatusDone,
		"finished_at": now,
		"last_error":  "",
	}).Error; err != nil {
		log.Printf("❌ [TASKS] Failed to mark task %s done: %v", task.ID, err)
	}
}

// retryOrFail reschedules the task with exponential backoff, or parks it as
// failed once MaxAttempts is exhausted. Enough context is logged to replay
// the task by hand.
func (w *TaskWorker) retryOrFail(task *models.QueuedTask, cause error) {
	if task.Attempts >= task.MaxAttempts {
		w.fail(task, cause)
		return
	}

	delay := w.BackoffBase * time.Duration(1<<(task.Attempts-1))
	nextRun := time.Now().Add(delay)
	log.Printf("⚠️ [TASKS] Task %s (%s) attempt %d/%d failed: %v, retrying in %s. Payload: %s",
		task.ID, task.Name, task.Attempts, task.MaxAttempts, cause, delay, task.Payload)

	if err := w.DB.Model(task).Updates(map[string]interface{}{
		"status":     models.TaskStatusPending,
		"run_at":     nextRun,
		"last_error": cause.Error(),
	}).Error; err != nil {
		log.Printf("❌ [TASKS] Failed to reschedule task %s: %v", task.ID, err)
	}
}

func (w *TaskWorker) fail(task *models.QueuedTask, cause error) {
	now := time.Now()
	log.Printf("❌ [TASKS] Task %s (%s) failed permanently after %d attempt(s): %v. Payload: %s",
		task.ID, task.Name, task.Attempts, cause, task.Payload)

	if err := w.DB.Model(task).Updates(map[string]interface{}{
		"status":      models.TaskStatusFailed,
		"finished_at": now,
		"last_error":  cause.Error(),
	}).Error; err != nil {
		log.Printf("❌ [TASKS] Failed to mark task %s failed: %v", task.ID, err)
	}
}
