// handlers/partner_routes.go
package handlers

import (
	"quest-tracking-system/middleware"
	"quest-tracking-system/models"
	"quest-tracking-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPartnerRoutes(app *fiber.App, partnerService *services.PartnerService) {
	app.Get("/partners", func(c *fiber.Ctx) error {
		var orgs []models.PartnerOrganization
		err := partnerService.DB.
			Preload("Partnerships").
			Where("is_active = ?", true).
			Find(&orgs).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list partners",
				"cause": err.Error(),
			})
		}
		return c.JSON(orgs)
	})

	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireStaff())

	adminGroup.Post("/partners", func(c *fiber.Ctx) error {
		var in services.OrganizationInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		if in.Name == "" || in.ContactEmail == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and contact_email are required"})
		}

		org, err := partnerService.CreateOrganization(in)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to create partner organization",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(org)
	})

	adminGroup.Post("/partnerships", func(c *fiber.Ctx) error {
		var in services.PartnershipInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}

		partnership, err := partnerService.CreatePartnership(in)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"error": "failed to create partnership",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(partnership)
	})
}
