// services/progress_service.go
package services

import (
	"errors"
	"log"
	"time"

	"quest-tracking-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressService owns the quest progress ledger and the consistency
// triggers that keep it in line with the completion set. Every trigger
// recomputes from fresh counts inside a transaction; none of them trusts a
// cached total, which is what makes redundant invocations idempotent.
type ProgressService struct {
	DB      *gorm.DB
	Rewards *RewardDispatcher
	Queue   *TaskQueueService
}

func NewProgressService(db *gorm.DB, rewards *RewardDispatcher, queue *TaskQueueService) *ProgressService {
	return &ProgressService{DB: db, Rewards: rewards, Queue: queue}
}

// challengeCounts returns (total, completed) for one user on one quest,
// derived from current challenge membership. Completions whose challenge
// was removed from the quest still exist but stop counting because the join
// only sees live challenges.
func (s *ProgressService) challengeCounts(tx *gorm.DB, questID, externalUserID string) (int64, int64, error) {
	var total int64
	if err := tx.Model(&models.Challenge{}).Where("quest_id = ?", questID).Count(&total).Error; err != nil {
		return 0, 0, err
	}

	var completed int64
	err := tx.Model(&models.QuestChallengeCompletion{}).
		Joins("JOIN challenges ON challenges.id = quest_challenge_completions.challenge_id AND challenges.deleted_at IS NULL").
		Where("quest_challenge_completions.external_user_id = ? AND challenges.quest_id = ?", externalUserID, questID).
		Count(&completed).Error
	if err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// applyRecompute re-derives progress/status for one ledger entry and
// persists only when something actually changed. The first transition into
// completed (and only the first) goes through the reward dispatcher, inside
// the same transaction as the status flip.
func (s *ProgressService) applyRecompute(tx *gorm.DB, entry *models.UserQuestProgress, quest *models.Quest) (bool, error) {
	total, completed, err := s.challengeCounts(tx, quest.ID, entry.ExternalUserID)
	if err != nil {
		return false, err
	}

	progress := ComputeProgress(total, completed)
	next := NextStatus(entry.Status, progress)
	if progress == entry.Progress && next == entry.Status {
		return false, nil
	}

	prev := entry.Status
	entry.Progress = progress

	if next == models.StatusCompleted && prev != models.StatusCompleted {
		// A single-challenge quest can jump straight from not_started
		if entry.StartDate == nil {
			now := time.Now()
			entry.StartDate = &now
		}
		// Dispatch sets Status and CompletionDate on the entry
		if err := s.Rewards.Dispatch(tx, entry, quest); err != nil {
			return false, err
		}
	} else {
		entry.Status = next
		if next == models.StatusInProgress && entry.StartDate == nil {
			now := time.Now()
			entry.StartDate = &now
		}
	}

	return true, tx.Save(entry).Error
}

// ensureLedger creates the (user, quest) ledger row if missing and returns
// the winning row either way. OnConflict DoNothing makes concurrent lazy
// creation safe against the unique index.
func (s *ProgressService) ensureLedger(tx *gorm.DB, externalUserID, questID string, initial models.ProgressStatus) (*models.UserQuestProgress, error) {
	entry := &models.UserQuestProgress{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		QuestID:        questID,
		Status:         initial,
	}
	if initial == models.StatusInProgress {
		now := time.Now()
		entry.StartDate = &now
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "quest_id"}},
		DoNothing: true,
	}).Create(entry).Error
	if err != nil {
		return nil, err
	}

	var got models.UserQuestProgress
	if err := tx.Where("external_user_id = ? AND quest_id = ?", externalUserID, questID).First(&got).Error; err != nil {
		return nil, err
	}
	return &got, nil
}

// RecordCompletion stores the append-only proof that a user finished one
// challenge and brings the quest ledger up to date. A second completion for
// the same (user, challenge) is rejected with ErrDuplicateCompletion, never
// overwritten.
func (s *ProgressService) RecordCompletion(externalUserID, challengeID, evidence string) (*models.QuestChallengeCompletion, error) {
	var completion *models.QuestChallengeCompletion

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		if err := tx.First(&challenge, "id = ?", challengeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChallengeNotFound
			}
			return err
		}

		var quest models.Quest
		if err := tx.First(&quest, "id = ?", challenge.QuestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestNotFound
			}
			return err
		}
		if !quest.IsActive {
			return ErrQuestInactive
		}

		// Pre-check for a clear conflict signal; the unique index on
		// (external_user_id, challenge_id) is the backstop under races.
		var existing int64
		if err := tx.Model(&models.QuestChallengeCompletion{}).
			Where("external_user_id = ? AND challenge_id = ?", externalUserID, challengeID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateCompletion
		}

		completion = &models.QuestChallengeCompletion{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			ChallengeID:    challengeID,
			QuestID:        quest.ID,
			Evidence:       evidence,
		}
		if err := tx.Create(completion).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateCompletion
			}
			return err
		}

		entry, err := s.ensureLedger(tx, externalUserID, quest.ID, models.StatusInProgress)
		if err != nil {
			return err
		}

		_, err = s.applyRecompute(tx, entry, &quest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// StartQuest is the user's explicit opt-in to a quest: it creates the
// ledger entry as in_progress on first touch, and resumes an abandoned
// entry (the only way out of abandoned). Completed and expired entries are
// returned untouched.
func (s *ProgressService) StartQuest(externalUserID, questID string) (*models.UserQuestProgress, error) {
	var result *models.UserQuestProgress

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var quest models.Quest
		if err := tx.First(&quest, "id = ?", questID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestNotFound
			}
			return err
		}
		if !quest.IsActive {
			return ErrQuestInactive
		}

		entry, err := s.ensureLedger(tx, externalUserID, questID, models.StatusInProgress)
		if err != nil {
			return err
		}

		if entry.Status == models.StatusNotStarted || entry.Status == models.StatusAbandoned {
			resumed := entry.Status == models.StatusAbandoned
			entry.Status = models.StatusInProgress
			if entry.StartDate == nil {
				now := time.Now()
				entry.StartDate = &now
			}
			if err := tx.Save(entry).Error; err != nil {
				return err
			}
			// A resumed entry may have drifted while abandoned (the
			// challenge set can change underneath it), so bring it current
			if _, err := s.applyRecompute(tx, entry, &quest); err != nil {
				return err
			}
			if resumed {
				log.Printf("📜 User %s resumed quest %q", externalUserID, quest.Title)
			}
		}

		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OnChallengeSetChanged recomputes every ledger entry for the quest after a
// challenge was added, removed, or had its order/required fields changed.
// Each entry gets its own transaction so one bad row cannot wedge the rest,
// and re-running the whole trigger is harmless.
func (s *ProgressService) OnChallengeSetChanged(questID string) error {
	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestNotFound
		}
		return err
	}

	var entries []models.UserQuestProgress
	if err := s.DB.Where("quest_id = ?", questID).Find(&entries).Error; err != nil {
		return err
	}

	for i := range entries {
		id := entries[i].ID
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var fresh models.UserQuestProgress
			if err := tx.First(&fresh, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil // entry cascaded away mid-pass
				}
				return err
			}
			_, err := s.applyRecompute(tx, &fresh, &quest)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// OnQuestActivated backfills not_started ledger entries for every active
// non-staff user lacking one. Abandoned entries are left alone: activation
// never resurrects them.
func (s *ProgressService) OnQuestActivated(questID string) error {
	var users []models.QuestUser
	if err := s.DB.Where("is_active = ? AND is_staff = ?", true, false).Find(&users).Error; err != nil {
		return err
	}

	for _, u := range users {
		if _, err := s.ensureLedger(s.DB, u.ExternalUserID, questID, models.StatusNotStarted); err != nil {
			return err
		}
	}
	log.Printf("📜 Quest %s activated, ledgers ensured for %d users", questID, len(users))
	return nil
}

// OnQuestDeactivated moves every in_progress entry for the quest to
// abandoned. Progress percentages are preserved; completed and already
// abandoned entries are untouched.
func (s *ProgressService) OnQuestDeactivated(questID string) error {
	res := s.DB.Model(&models.UserQuestProgress{}).
		Where("quest_id = ? AND status = ?", questID, models.StatusInProgress).
		Update("status", models.StatusAbandoned)
	if res.Error != nil {
		return res.Error
	}
	log.Printf("📜 Quest %s deactivated, %d in-progress ledgers abandoned", questID, res.RowsAffected)
	return nil
}

// OnUserCreated seeds not_started ledgers for every active quest when the
// sync worker first mirrors a user. Staff accounts are skipped, and a
// welcome notification is queued for everyone else.
func (s *ProgressService) OnUserCreated(externalUserID string) error {
	var user models.QuestUser
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsStaff {
		return nil
	}

	var quests []models.Quest
	if err := s.DB.Where("is_active = ?", true).Find(&quests).Error; err != nil {
		return err
	}
	for _, q := range quests {
		if _, err := s.ensureLedger(s.DB, externalUserID, q.ID, models.StatusNotStarted); err != nil {
			return err
		}
	}

	if user.Email != "" {
		firstName := "there"
		if user.FirstName != nil && *user.FirstName != "" {
			firstName = *user.FirstName
		}
		if _, err := s.Queue.Enqueue(s.DB, models.TaskWelcomeUser, map[string]interface{}{
			"external_user_id": externalUserID,
			"email":            user.Email,
			"first_name":       firstName,
		}); err != nil {
			return err
		}
	}

	log.Printf("👋 New user %s seeded with %d quest ledgers", user.Username, len(quests))
	return nil
}

// GetProgress returns the ledger entry for (user, quest), lazily creating a
// not_started one on first interaction.
func (s *ProgressService) GetProgress(externalUserID, questID string) (*models.UserQuestProgress, error) {
	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return s.ensureLedger(s.DB, externalUserID, questID, models.StatusNotStarted)
}
