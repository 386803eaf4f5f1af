// services/digest.go
package services

import (
	"context"
	"time"

	"quest-tracking-system/models"

	"gorm.io/gorm"
)

// DigestService queues the daily progress digest for users who opted in.
// The actual email rendering/sending happens in the notification service;
// this side only decides who gets one and with what quest data.
type DigestService struct {
	DB    *gorm.DB
	Queue *TaskQueueService
}

func NewDigestService(db *gorm.DB, queue *TaskQueueService) *DigestService {
	return &DigestService{DB: db, Queue: queue}
}

// EnqueueDailyDigests queues one daily_digest task per opted-in active user
// who has at least one quest in progress. Users with nothing in flight are
// skipped. Returns the number of digests queued.
func (s *DigestService) EnqueueDailyDigests(ctx context.Context) (int, error) {
	var users []models.QuestUser
	err := s.DB.WithContext(ctx).
		Where("is_active = ? AND digest_opt_in = ?", true, true).
		Find(&users).Error
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return queued, err
		}

		var inProgress []models.UserQuestProgress
		err := s.DB.WithContext(ctx).
			Preload("Quest").
			Where("external_user_id = ? AND status = ?", u.ExternalUserID, models.StatusInProgress).
			Find(&inProgress).Error
		if err != nil {
			return queued, err
		}
		if len(inProgress) == 0 {
			continue
		}

		quests := make([]map[string]interface{}, 0, len(inProgress))
		for _, p := range inProgress {
			if p.Quest == nil {
				continue
			}
			quests = append(quests, map[string]interface{}{
				"quest_title": p.Quest.Title,
				"progress":    p.Progress,
			})
		}

		// Up to 3 fresh quests the user has not started yet, as teasers
		var newQuests []models.Quest
		weekAgo := time.Now().AddDate(0, 0, -7)
		err = s.DB.WithContext(ctx).
			Where("is_active = ? AND created_at >= ?", true, weekAgo).
			Where("id NOT IN (?)", s.DB.Model(&models.UserQuestProgress{}).
				Select("quest_id").
				Where("external_user_id = ? AND status <> ?", u.ExternalUserID, models.StatusNotStarted)).
			Limit(3).
			Find(&newQuests).Error
		if err != nil {
			return queued, err
		}
		newTitles := make([]string, 0, len(newQuests))
		for _, q := range newQuests {
			newTitles = append(newTitles, q.Title)
		}

		if _, err := s.Queue.Enqueue(s.DB, models.TaskDailyDigest, map[string]interface{}{
			"external_user_id": u.ExternalUserID,
			"email":            u.Email,
			"in_progress":      quests,
			"new_quests":       newTitles,
		}); err != nil {
			return queued, err
		}
		queued++
	}

	return queued, nil
}
