package services

import (
	"context"
	"testing"
	"time"

	"quest-tracking-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerFixesStaleLedger(t *testing.T) {
	s := setupServices(t)
	rec := NewReconciler(s.DB, s.Progress)
	user := seedUser(t, s.DB, false)
	quest, challenges := seedQuest(t, s.DB, 2, 300)

	_, err := s.Progress.RecordCompletion(user.ExternalUserID, challenges[0].ID, "")
	require.NoError(t, err)

	// Second completion lands without the recompute, as if the process died
	// between the insert and the ledger update
	require.NoError(t, s.DB.Create(&models.QuestChallengeCompletion{
		ID:             uuid.NewString(),
		ExternalUserID: user.ExternalUserID,
		ChallengeID:    challenges[1].ID,
		QuestID:        quest.ID,
	}).Error)

	require.Equal(t, 50, getLedger(t, s.DB, user.ExternalUserID, quest.ID).Progress)

	updated, err := rec.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	entry := getLedger(t, s.DB, user.ExternalUserID, quest.ID)
	assert.Equal(t, 100, entry.Progress)
	assert.Equal(t, models.StatusCompleted, entry.Status)
	assert.NotNil(t, entry.CompletionDate)
	assert.Equal(t, int64(300), getUserXP(t, s.DB, user.ExternalUserID))
	assert.Equal(t, int64(1), countTasks(t, s.DB, models.TaskQuestCompleted))

	// A second pass finds everything consistent
	updated, err = rec.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Equal(t, int64(300), getUserXP(t, s.DB, user.ExternalUserID))
}

func TestReconcilerExpiresOverdueQuests(t *testing.T) {
	s := setupServices(t)
	rec := NewReconciler(s.DB, s.Progress)
	user := seedUser(t, s.DB, false)
	quest, challenges := seedQuest(t, s.DB, 2, 300)

	_, err := s.Progress.RecordCompletion(user.ExternalUserID, challenges[0].ID, "")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.DB.Model(quest).Update("expires_at", past).Error)

	updated, err := rec.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	entry := getLedger(t, s.DB, user.ExternalUserID, quest.ID)
	assert.Equal(t, models.StatusExpired, entry.Status)
	assert.Equal(t, 50, entry.Progress)
	assert.Nil(t, entry.CompletionDate)

	// Expiry never rewards, even when the stale count says 100
	assert.Equal(t, int64(0), getUserXP(t, s.DB, user.ExternalUserID))
	assert.Equal(t, int64(0), countTasks(t, s.DB, models.TaskQuestCompleted))
}

func TestReconcilerIgnoresSettledStatuses(t *testing.T) {
	s := setupServices(t)
	rec := NewReconciler(s.DB, s.Progress)
	user := seedUser(t, s.DB, false)
	quest, challenges := seedQuest(t, s.DB, 2, 100)

	_, err := s.Progress.RecordCompletion(user.ExternalUserID, challenges[0].ID, "")
	require.NoError(t, err)
	require.NoError(t, s.Quests.Deactivate(quest.ID))
	require.Equal(t, models.StatusAbandoned, getLedger(t, s.DB, user.ExternalUserID, quest.ID).Status)

	updated, err := rec.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Equal(t, models.StatusAbandoned, getLedger(t, s.DB, user.ExternalUserID, quest.ID).Status)
}

func TestReconcilerRunRetriesCancelledContext(t *testing.T) {
	s := setupServices(t)
	rec := NewReconciler(s.DB, s.Progress)
	rec.RetryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rec.Run(ctx)
	assert.Error(t, err)
}
