// handlers/progress_routes.go
package handlers

import (
	"errors"

	"quest-tracking-system/middleware"
	"quest-tracking-system/models"
	"quest-tracking-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// statusForError maps the service error taxonomy onto HTTP statuses.
// Transient persistence failures surface as 503 so callers know a retry
// is worthwhile.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrDuplicateCompletion):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrQuestNotFound),
		errors.Is(err, services.ErrChallengeNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrQuestInactive):
		return fiber.StatusUnprocessableEntity
	case services.IsTransient(err):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func SetupProgressRoutes(app *fiber.App, progressService *services.ProgressService, reconciler *services.Reconciler) {
	// 🔐 Secured routes — require user context (userID, roles)
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	// Record that the authenticated user finished one challenge. A repeat
	// for the same challenge is a 409; the first record stays untouched.
	securedGroup.Post("/challenges/:id/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		challengeID := c.Params("id")

		var req struct {
			Evidence string `json:"evidence"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}

		completion, err := progressService.RecordCompletion(userID, challengeID, req.Evidence)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to record completion",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(completion)
	})

	// Explicit opt-in: creates the ledger as in_progress, or resumes an
	// abandoned entry. 201 on first touch, 200 otherwise.
	securedGroup.Post("/quests/:id/start", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		questID := c.Params("id")

		var existed int64
		progressService.DB.Model(&models.UserQuestProgress{}).
			Where("external_user_id = ? AND quest_id = ?", userID, questID).
			Count(&existed)

		entry, err := progressService.StartQuest(userID, questID)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to start quest",
				"cause": err.Error(),
			})
		}
		status := fiber.StatusOK
		if existed == 0 {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(entry)
	})

	securedGroup.Get("/quests/:id/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		questID := c.Params("id")

		entry, err := progressService.GetProgress(userID, questID)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to fetch progress",
				"cause": err.Error(),
			})
		}
		return c.JSON(entry)
	})

	// Summary: experience, level, and every ledger entry with quest titles
	securedGroup.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var user models.QuestUser
		if err := progressService.DB.Where("external_user_id = ?", userID).First(&user).Error; err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "user not synced yet",
				"cause": err.Error(),
			})
		}

		var entries []models.UserQuestProgress
		if err := progressService.DB.
			Preload("Quest").
			Where("external_user_id = ?", userID).
			Find(&entries).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch ledger entries",
				"cause": err.Error(),
			})
		}

		var completedCount int
		for _, e := range entries {
			if e.Status == models.StatusCompleted {
				completedCount++
			}
		}

		return c.JSON(fiber.Map{
			"external_user_id":  user.ExternalUserID,
			"username":          user.Username,
			"experience_points": user.ExperiencePoints,
			"level":             user.Level,
			"quests_completed":  completedCount,
			"quests":            entries,
		})
	})

	// Admin: trigger one reconciliation pass outside the hourly schedule
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireStaff())

	adminGroup.Post("/reconcile", func(c *fiber.Ctx) error {
		updated, err := reconciler.ReconcileOnce(c.Context())
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "reconcile pass failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"message": "reconcile pass complete",
			"updated": updated,
		})
	})
}
