// services/quest_service.go
package services

import (
	"errors"
	"strings"
	"time"

	"quest-tracking-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// QuestService owns admin-side quest and challenge mutations. Every
// mutation that can move a ledger's derived state invokes the matching
// consistency trigger on ProgressService before returning.
type QuestService struct {
	DB       *gorm.DB
	Progress *ProgressService
}

func NewQuestService(db *gorm.DB, progress *ProgressService) *QuestService {
	return &QuestService{DB: db, Progress: progress}
}

var titleCaser = cases.Title(language.English)

// QuestInput is the admin payload for creating a quest.
type QuestInput struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	QuestType        models.QuestType `json:"quest_type"`
	Difficulty       int              `json:"difficulty"`
	DurationMinutes  int              `json:"duration_minutes"`
	ExperienceReward int64            `json:"experience_reward"`
	IsActive         *bool            `json:"is_active"`
	ExpiresAt        *time.Time       `json:"expires_at"`
	Categories       []string         `json:"categories"`
}

// CreateQuest creates a quest (active by default) and seeds ledgers for
// existing users when it starts out active.
func (s *QuestService) CreateQuest(in QuestInput) (*models.Quest, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	difficulty := in.Difficulty
	if difficulty < models.DifficultyEasy || difficulty > models.DifficultyExpert {
		difficulty = models.DifficultyEasy
	}

	quest := &models.Quest{
		ID:               uuid.NewString(),
		Title:            in.Title,
		Slug:             slug.Make(in.Title),
		Description:      in.Description,
		QuestType:        in.QuestType,
		Difficulty:       difficulty,
		DurationMinutes:  in.DurationMinutes,
		ExperienceReward: in.ExperienceReward,
		IsActive:         active,
		ExpiresAt:        in.ExpiresAt,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quest).Error; err != nil {
			return err
		}
		for _, name := range in.Categories {
			cat, err := s.ensureCategory(tx, name)
			if err != nil {
				return err
			}
			if err := tx.Model(quest).Association("Categories").Append(cat); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if active {
		if err := s.Progress.OnQuestActivated(quest.ID); err != nil {
			return nil, err
		}
	}
	return quest, nil
}

// ensureCategory finds or creates a category by its normalized display name.
func (s *QuestService) ensureCategory(tx *gorm.DB, name string) (*models.Category, error) {
	name = titleCaser.String(strings.TrimSpace(name))
	if name == "" {
		return nil, errors.New("category name is empty")
	}

	var cat models.Category
	err := tx.Where("name = ?", name).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cat = models.Category{ID: uuid.NewString(), Name: name}
		if err := tx.Create(&cat).Error; err != nil {
			return nil, err
		}
		return &cat, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// Activate flips a quest to active and backfills ledgers for active users.
// Re-activating an already-active quest is a no-op.
func (s *QuestService) Activate(questID string) error {
	quest, err := s.getQuest(questID)
	if err != nil {
		return err
	}
	if !quest.IsActive {
		if err := s.DB.Model(quest).Update("is_active", true).Error; err != nil {
			return err
		}
	}
	// Ledger backfill is idempotent, run it either way
	return s.Progress.OnQuestActivated(questID)
}

// Deactivate flips a quest to inactive and abandons in-progress ledgers.
func (s *QuestService) Deactivate(questID string) error {
	quest, err := s.getQuest(questID)
	if err != nil {
		return err
	}
	if quest.IsActive {
		if err := s.DB.Model(quest).Update("is_active", false).Error; err != nil {
			return err
		}
	}
	return s.Progress.OnQuestDeactivated(questID)
}

// ChallengeInput is the admin payload for adding a challenge to a quest.
type ChallengeInput struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Order            int    `json:"order"`
	IsRequired       *bool  `json:"is_required"`
	ExperienceReward int64  `json:"experience_reward"`
}

// AddChallenge appends a challenge to the quest's ordered set and recomputes
// every ledger for the quest (everyone's denominator just grew).
func (s *QuestService) AddChallenge(questID string, in ChallengeInput) (*models.Challenge, error) {
	if _, err := s.getQuest(questID); err != nil {
		return nil, err
	}

	required := true
	if in.IsRequired != nil {
		required = *in.IsRequired
	}
	challenge := &models.Challenge{
		ID:               uuid.NewString(),
		QuestID:          questID,
		Title:            in.Title,
		Description:      in.Description,
		Order:            in.Order,
		IsRequired:       required,
		ExperienceReward: in.ExperienceReward,
	}
	if err := s.DB.Create(challenge).Error; err != nil {
		return nil, err
	}

	if err := s.Progress.OnChallengeSetChanged(questID); err != nil {
		return nil, err
	}
	return challenge, nil
}

// ChallengePatch carries the mutable challenge fields for admin updates.
type ChallengePatch struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Order            *int    `json:"order"`
	IsRequired       *bool   `json:"is_required"`
	ExperienceReward *int64  `json:"experience_reward"`
}

// UpdateChallenge patches a challenge; order/required changes trigger a
// ledger recompute for the parent quest.
func (s *QuestService) UpdateChallenge(challengeID string, patch ChallengePatch) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	membershipChanged := false
	if patch.Title != nil {
		challenge.Title = *patch.Title
	}
	if patch.Description != nil {
		challenge.Description = *patch.Description
	}
	if patch.Order != nil && *patch.Order != challenge.Order {
		challenge.Order = *patch.Order
		membershipChanged = true
	}
	if patch.IsRequired != nil && *patch.IsRequired != challenge.IsRequired {
		challenge.IsRequired = *patch.IsRequired
		membershipChanged = true
	}
	if patch.ExperienceReward != nil {
		challenge.ExperienceReward = *patch.ExperienceReward
	}

	if err := s.DB.Save(&challenge).Error; err != nil {
		return nil, err
	}

	if membershipChanged {
		if err := s.Progress.OnChallengeSetChanged(challenge.QuestID); err != nil {
			return nil, err
		}
	}
	return &challenge, nil
}

// RemoveChallenge drops a challenge from its quest. Completion records for
// it are kept (evidence is append-only) but stop counting: recomputation
// re-derives completed/total from current membership, so every ledger on
// the quest gets a smaller denominator.
func (s *QuestService) RemoveChallenge(challengeID string) error {
	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChallengeNotFound
		}
		return err
	}

	if err := s.DB.Delete(&challenge).Error; err != nil {
		return err
	}
	return s.Progress.OnChallengeSetChanged(challenge.QuestID)
}

func (s *QuestService) getQuest(questID string) (*models.Quest, error) {
	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return &quest, nil
}
