// handlers/quest_routes.go
package handlers

import (
	"strings"

	"quest-tracking-system/middleware"
	"quest-tracking-system/models"
	"quest-tracking-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// orderedChallenges preloads a quest's challenges in their quest-defined order.
func orderedChallenges(db *gorm.DB) *gorm.DB {
	return db.Order("challenge_order ASC")
}

func SetupQuestRoutes(app *fiber.App, questService *services.QuestService) {
	// Public browsing (still behind the gateway token, no user context needed)
	app.Get("/quests", func(c *fiber.Ctx) error {
		query := c.Query("q", "")

		db := questService.DB.
			Preload("Categories").
			Preload("Challenges", orderedChallenges).
			Where("is_active = ?", true)

		if query != "" {
			searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
			db = db.Where("LOWER(title) LIKE ?", searchTerm)
		}

		var quests []models.Quest
		if err := db.Find(&quests).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list quests",
				"cause": err.Error(),
			})
		}
		return c.JSON(quests)
	})

	app.Get("/quests/:id", func(c *fiber.Ctx) error {
		var quest models.Quest
		err := questService.DB.
			Preload("Categories").
			Preload("Challenges", orderedChallenges).
			First(&quest, "id = ?", c.Params("id")).Error
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "quest not found",
			})
		}
		return c.JSON(quest)
	})

	// Admin: quest and challenge set mutations. Each one funnels through
	// the consistency triggers so ledgers never drift.
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireStaff())

	adminGroup.Post("/quests", func(c *fiber.Ctx) error {
		var in services.QuestInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		if in.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
		}

		quest, err := questService.CreateQuest(in)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to create quest",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(quest)
	})

	adminGroup.Post("/quests/:id/activate", func(c *fiber.Ctx) error {
		if err := questService.Activate(c.Params("id")); err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to activate quest",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "quest activated"})
	})

	adminGroup.Post("/quests/:id/deactivate", func(c *fiber.Ctx) error {
		if err := questService.Deactivate(c.Params("id")); err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to deactivate quest",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "quest deactivated"})
	})

	adminGroup.Post("/quests/:id/challenges", func(c *fiber.Ctx) error {
		var in services.ChallengeInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		if in.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
		}

		challenge, err := questService.AddChallenge(c.Params("id"), in)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to add challenge",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	adminGroup.Patch("/challenges/:id", func(c *fiber.Ctx) error {
		var patch services.ChallengePatch
		if err := c.BodyParser(&patch); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}

		challenge, err := questService.UpdateChallenge(c.Params("id"), patch)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to update challenge",
				"cause": err.Error(),
			})
		}
		return c.JSON(challenge)
	})

	adminGroup.Delete("/challenges/:id", func(c *fiber.Ctx) error {
		if err := questService.RemoveChallenge(c.Params("id")); err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to remove challenge",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "challenge removed"})
	})
}
