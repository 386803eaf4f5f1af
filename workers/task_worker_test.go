package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quest-tracking-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named in-memory database with shared cache so every pooled connection
	// sees the same schema
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive for the whole test
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.QueuedTask{}))
	return db
}

func newTestWorker(db *gorm.DB) *TaskWorker {
	w := NewTaskWorker(db)
	w.Interval = 10 * time.Millisecond
	w.TaskTimeout = time.Second
	w.BackoffBase = 0 // retries are immediately due in tests
	return w
}

func enqueueTask(t *testing.T, db *gorm.DB, name, payload string) *models.QueuedTask {
	t.Helper()
	task := &models.QueuedTask{
		ID:          uuid.NewString(),
		Name:        name,
		Payload:     payload,
		Status:      models.TaskStatusPending,
		MaxAttempts: 3,
		RunAt:       time.Now(),
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func reloadTask(t *testing.T, db *gorm.DB, id string) *models.QueuedTask {
	t.Helper()
	var task models.QueuedTask
	require.NoError(t, db.First(&task, "id = ?", id).Error)
	return &task
}

func TestDrainRunsPendingTask(t *testing.T) {
	db := setupWorkerDB(t)
	w := newTestWorker(db)

	var gotEvent string
	w.Register("send_email", func(ctx context.Context, payload map[string]interface{}) error {
		gotEvent, _ = payload["event"].(string)
		return nil
	})

	task := enqueueTask(t, db, "send_email", `{"event":"welcome"}`)
	w.Drain(context.Background())

	assert.Equal(t, "welcome", gotEvent)

	done := reloadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	assert.Equal(t, 1, done.Attempts)
	assert.NotNil(t, done.FinishedAt)
	assert.Empty(t, done.LastError)
}

func TestDrainRetriesThenParksFailure(t *testing.T) {
	db := setupWorkerDB(t)
	w := newTestWorker(db)

	calls := 0
	w.Register("flaky", func(ctx context.Context, payload map[string]interface{}) error {
		calls++
		return errors.New("downstream unavailable")
	})

	task := enqueueTask(t, db, "flaky", `{}`)

	// With zero backoff each Drain picks the rescheduled task straight back
	// up, so one call burns through all attempts
	w.Drain(context.Background())

	assert.Equal(t, 3, calls)
	failed := reloadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Equal(t, 3, failed.Attempts)
	assert.Contains(t, failed.LastError, "downstream unavailable")
	assert.NotNil(t, failed.FinishedAt)
}

func TestDrainRecoversAfterTransientFailure(t *testing.T) {
	db := setupWorkerDB(t)
	w := newTestWorker(db)

	calls := 0
	w.Register("eventually", func(ctx context.Context, payload map[string]interface{}) error {
		calls++
		if calls < 2 {
			return errors.New("timeout")
		}
		return nil
	})

	task := enqueueTask(t, db, "eventually", `{}`)
	w.Drain(context.Background())

	assert.Equal(t, 2, calls)
	done := reloadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	assert.Equal(t, 2, done.Attempts)
	assert.Empty(t, done.LastError)
}

func TestUnregisteredTaskFailsPermanently(t *testing.T) {
	db := setupWorkerDB(t)
	w := newTestWorker(db)

	task := enqueueTask(t, db, "nobody_home", `{}`)
	w.Drain(context.Background())

	failed := reloadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Contains(t, failed.LastError, "no handler registered")
}

func TestMalformedPayloadFailsPermanently(t *testing.T) {
	db := setupWorkerDB(t)
	w := newTestWorker(db)
	w.Register("send_email", func(ctx context.Context, payload map[string]interface{}) error {
		t.Fatal("handler must not run on malformed payload")
		return nil
	})

	task := enqueueTask(t, db, "send_email", `{not json`)
	w.Drain(context.Background())

	failed := reloadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Contains(t, failed.LastError, "malformed payload")
}

// Two workers draining the same queue: the status-guarded claim means a
// lost race skips to the next candidate instead of stopping, and every
// task runs exactly once.
func TestConcurrentDrainsClaimEachTaskOnce(t *testing.T) {
	db := setupWorkerDB(t)

	var mu sync.Mutex
	runs := map[string]int{}
	handler := func(ctx context.Context, payload map[string]interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		id, _ := payload["id"].(string)
		runs[id]++
		return nil
	}

	const total = 8
	for i := 0; i < total; i++ {
		enqueueTask(t, db, "fan_out", fmt.Sprintf(`{"id":"task-%d"}`, i))
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		w := newTestWorker(db)
		w.Register("fan_out", handler)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Drain(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, runs, total)
	for id, n := range runs {
		assert.Equal(t, 1, n, "task %s ran %d times", id, n)
	}

	var done int64
	require.NoError(t, db.Model(&models.QueuedTask{}).
		Where("status = ?", models.TaskStatusDone).Count(&done).Error)
	assert.Equal(t, int64(total), done)
}

func TestFutureTaskIsNotClaimed(t *testing.T) {
	db := setupWorkerDB(t)
	w := newTestWorker(db)
	w.Register("later", func(ctx context.Context, payload map[string]interface{}) error {
		t.Fatal("task scheduled in the future must not run yet")
		return nil
	})

	task := enqueueTask(t, db, "later", `{}`)
	require.NoError(t, db.Model(task).Update("run_at", time.Now().Add(time.Hour)).Error)

	w.Drain(context.Background())

	pending := reloadTask(t, db, task.ID)
	assert.Equal(t, models.TaskStatusPending, pending.Status)
	assert.Equal(t, 0, pending.Attempts)
}
