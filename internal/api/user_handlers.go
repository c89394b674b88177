package api

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodate/internal/models"
)

// GetUserProfileHandler returns the current user's profile information.
func GetUserProfileHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var username, timezone, createdAt string
		var email sql.NullString

		err := db.QueryRow(
			"SELECT username, email, timezone, created_at FROM users WHERE id = ?",
			userID,
		).Scan(&username, &email, &timezone, &createdAt)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to get user profile")
		}

		profile := fiber.Map{
			"id":         userID,
			"username":   username,
			"timezone":   timezone,
			"created_at": createdAt,
		}
		if email.Valid {
			profile["email"] = email.String
		} else {
			profile["email"] = nil
		}

		return c.JSON(profile)
	}
}

// UpdateTimezoneHandler stores the user's IANA timezone preference, used by
// the daily pass to resolve their local date. The zone must resolve here;
// the pass itself still falls back to UTC if the database holds a zone the
// host no longer knows.
func UpdateTimezoneHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.UpdateTimezoneRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if req.Timezone == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Timezone is required")
		}
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Unknown timezone")
		}

		if _, err := db.Exec("UPDATE users SET timezone = ? WHERE id = ?", req.Timezone, userID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update timezone")
		}

		return c.JSON(fiber.Map{"success": true, "timezone": req.Timezone})
	}
}
