package api

import (
	"crypto/subtle"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"

	"memodate/internal/auth"
)

func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		// Store user info in context
		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)

		return c.Next()
	}
}

// CronAuthMiddleware guards the daily-pass trigger with the CRON_SECRET
// shared bearer token. On mismatch the request is rejected and no batch work
// happens.
func CronAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := os.Getenv("CRON_SECRET")
		if secret == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Cron trigger not configured. Set CRON_SECRET.")
		}

		got := c.Get("Authorization")
		want := "Bearer " + secret
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		return c.Next()
	}
}
