// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the authenticated principal set by the
// Gateway (user id + roles). The core never reads ambient user state; every
// handler pulls the principal from locals and threads it into service calls
// explicitly.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/s/")
		if isSecured && userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		isStaff := false
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r == "" {
					continue
				}
				roles = append(roles, r)
				if r == "admin" || r == "staff" {
					isStaff = true
				}
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)
		c.Locals("is_staff", isStaff)

		return c.Next()
	}
}

// RequireStaff guards admin routes; UserContextMiddleware must run first.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isStaff, ok := c.Locals("is_staff").(bool); !ok || !isStaff {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "staff role required",
			})
		}
		return c.Next()
	}
}
