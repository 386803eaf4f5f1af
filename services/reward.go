// services/reward.go
package services

import (
	"log"
	"time"

	"quest-tracking-system/models"

	"gorm.io/gorm"
)

// RewardDispatcher awards quest experience exactly once per ledger entry's
// transition into completed. Callers guard with the previous status; the
// dispatcher also checks the ledger itself, so a redundant invocation for
// an already-completed entry is a no-op.
type RewardDispatcher struct {
	DB    *gorm.DB
	Queue *TaskQueueService
}

func NewRewardDispatcher(db *gorm.DB, queue *TaskQueueService) *RewardDispatcher {
	return &RewardDispatcher{DB: db, Queue: queue}
}

// Dispatch applies the completion reward inside tx: atomic experience
// increment on the user row (never read-modify-write, concurrent quest
// completions for the same user must not lose updates) plus a
// quest_completed notification task in the same transaction.
func (d *RewardDispatcher) Dispatch(tx *gorm.DB, entry *models.UserQuestProgress, quest *models.Quest) error {
	if entry.Status == models.StatusCompleted && entry.CompletionDate != nil {
		// Already rewarded for this quest; nothing to do
		return nil
	}

	now := time.Now()
	entry.Status = models.StatusCompleted
	entry.CompletionDate = &now

	res := tx.Model(&models.QuestUser{}).
		Where("external_user_id = ?", entry.ExternalUserID).
		Update("experience_points", gorm.Expr("experience_points + ?", quest.ExperienceReward))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// User mirror not synced yet; the reward is lost only if the user
		// truly does not exist, which cascade rules make impossible here.
		log.Printf("⚠️ [REWARD] No user row for %s while rewarding quest %s", entry.ExternalUserID, quest.ID)
	}

	if _, err := d.Queue.Enqueue(tx, models.TaskQuestCompleted, map[string]interface{}{
		"external_user_id":  entry.ExternalUserID,
		"quest_id":          quest.ID,
		"quest_title":       quest.Title,
		"experience_reward": quest.ExperienceReward,
	}); err != nil {
		return err
	}

	log.Printf("🏆 Quest completed: %s finished %q (+%d XP)", entry.ExternalUserID, quest.Title, quest.ExperienceReward)
	return nil
}
