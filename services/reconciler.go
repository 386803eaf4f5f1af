// services/reconciler.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"quest-tracking-system/models"

	"gorm.io/gorm"
)

// Reconciler is the hourly batch job that re-derives progress/status for
// every in_progress ledger entry and catches time-based quest expiry. Each
// entry's recompute is independently idempotent, so a pass that dies halfway
// through is safe to re-run from the top.
type Reconciler struct {
	DB       *gorm.DB
	Progress *ProgressService

	// Pass-level retry policy for transient persistence failures
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewReconciler(db *gorm.DB, progress *ProgressService) *Reconciler {
	return &Reconciler{
		DB:          db,
		Progress:    progress,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Minute,
	}
}

// ReconcileOnce runs a single pass and returns how many ledger entries it
// actually changed. Entries whose derived state is already correct are not
// rewritten.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	var entries []models.UserQuestProgress
	err := r.DB.WithContext(ctx).
		Preload("Quest").
		Where("status = ?", models.StatusInProgress).
		Find(&entries).Error
	if err != nil {
		return 0, err
	}

	updated := 0
	now := time.Now()

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		entry := &entries[i]
		if entry.Quest == nil {
			continue // quest row gone; cascade cleanup owns this entry
		}

		// Expiry beats recomputation: no reward on an expired quest
		if entry.Quest.ExpiresAt != nil && entry.Quest.ExpiresAt.Before(now) {
			res := r.DB.WithContext(ctx).Model(&models.UserQuestProgress{}).
				Where("id = ? AND status = ?", entry.ID, models.StatusInProgress).
				Update("status", models.StatusExpired)
			if res.Error != nil {
				return updated, res.Error
			}
			if res.RowsAffected > 0 {
				log.Printf("⏳ Ledger %s expired (quest %q)", entry.ID, entry.Quest.Title)
				updated++
			}
			continue
		}

		changed := false
		err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var fresh models.UserQuestProgress
			if err := tx.First(&fresh, "id = ?", entry.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			var applyErr error
			changed, applyErr = r.Progress.applyRecompute(tx, &fresh, entry.Quest)
			return applyErr
		})
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}

	return updated, nil
}

// Run executes a reconciliation pass, retrying the whole pass with
// exponential backoff when it fails. Partial progress from a failed pass is
// fine: the next attempt finds those entries already consistent and skips
// them.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		updated, err := r.ReconcileOnce(ctx)
		if err == nil {
			return updated, nil
		}
		lastErr = err
		log.Printf("⚠️ [RECONCILER] Pass failed (attempt %d/%d): %v", attempt, r.MaxAttempts, err)

		if attempt == r.MaxAttempts || ctx.Err() != nil {
			break
		}
		delay := r.RetryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	return 0, lastErr
}
