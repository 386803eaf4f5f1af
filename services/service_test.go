package services

// Shared test fixtures: every service test runs against an in-memory
// sqlite database migrated with the real models.

import (
	"fmt"
	"testing"

	"quest-tracking-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named in-memory database with shared cache so every pooled
	// connection sees the same schema
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps the in-memory database alive for the whole test
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Category{},
		&models.Quest{},
		&models.Challenge{},
		&models.QuestUser{},
		&models.UserQuestProgress{},
		&models.QuestChallengeCompletion{},
		&models.PartnerOrganization{},
		&models.Partnership{},
		&models.QueuedTask{},
	))
	return db
}

type testServices struct {
	DB       *gorm.DB
	Queue    *TaskQueueService
	Rewards  *RewardDispatcher
	Progress *ProgressService
	Quests   *QuestService
}

func setupServices(t *testing.T) *testServices {
	t.Helper()
	db := setupTestDB(t)
	queue := NewTaskQueueService(db)
	rewards := NewRewardDispatcher(db, queue)
	progress := NewProgressService(db, rewards, queue)
	quests := NewQuestService(db, progress)
	return &testServices{DB: db, Queue: queue, Rewards: rewards, Progress: progress, Quests: quests}
}

func seedUser(t *testing.T, db *gorm.DB, staff bool) *models.QuestUser {
	t.Helper()
	user := &models.QuestUser{
		ID:             uuid.NewString(),
		ExternalUserID: uuid.NewString(),
		Username:       fmt.Sprintf("user-%s", uuid.NewString()[:8]),
		Email:          "user@example.com",
		IsStaff:        staff,
		IsActive:       true,
		DigestOptIn:    true,
		Level:          1,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// seedQuest creates an active quest with n challenges ordered 1..n.
func seedQuest(t *testing.T, db *gorm.DB, n int, reward int64) (*models.Quest, []models.Challenge) {
	t.Helper()
	quest := &models.Quest{
		ID:               uuid.NewString(),
		Title:            "Summit Hike",
		Slug:             fmt.Sprintf("summit-hike-%s", uuid.NewString()[:8]),
		QuestType:        models.QuestTypeOutdoor,
		Difficulty:       models.DifficultyModerate,
		ExperienceReward: reward,
		IsActive:         true,
	}
	require.NoError(t, db.Create(quest).Error)

	challenges := make([]models.Challenge, 0, n)
	for i := 1; i <= n; i++ {
		ch := models.Challenge{
			ID:         uuid.NewString(),
			QuestID:    quest.ID,
			Title:      fmt.Sprintf("Step %d", i),
			Order:      i,
			IsRequired: i != n, // last one optional; all count toward progress
		}
		require.NoError(t, db.Create(&ch).Error)
		challenges = append(challenges, ch)
	}
	return quest, challenges
}

func getLedger(t *testing.T, db *gorm.DB, externalUserID, questID string) *models.UserQuestProgress {
	t.Helper()
	var entry models.UserQuestProgress
	require.NoError(t, db.Where("external_user_id = ? AND quest_id = ?", externalUserID, questID).First(&entry).Error)
	return &entry
}

func getUserXP(t *testing.T, db *gorm.DB, externalUserID string) int64 {
	t.Helper()
	var user models.QuestUser
	require.NoError(t, db.Where("external_user_id = ?", externalUserID).First(&user).Error)
	return user.ExperiencePoints
}

func countTasks(t *testing.T, db *gorm.DB, name string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.QueuedTask{}).Where("name = ?", name).Count(&n).Error)
	return n
}
