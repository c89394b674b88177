package api

import (
	"database/sql"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"memodate/internal/models"
	"memodate/internal/notify"
)

func SubscribePushHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var sub models.PushSubscription
		if err := c.BodyParser(&sub); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Missing subscription fields")
		}

		// Upsert by endpoint so resubscribing replaces the old keys
		_, err := db.Exec(
			`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth`,
			userID, sub.Endpoint, sub.P256dh, sub.Auth,
		)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

func UnsubscribePushHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var body struct {
			Endpoint string `json:"endpoint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		_, err := db.Exec(
			"DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?",
			userID, body.Endpoint,
		)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

// VapidPublicKeyHandler returns the VAPID public key clients need to create
// a push subscription.
func VapidPublicKeyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		publicKey := os.Getenv("VAPID_PUBLIC_KEY")
		if publicKey == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured")
		}
		return c.JSON(fiber.Map{
			"publicKey": publicKey,
		})
	}
}

// SendTestPushHandler sends a real test notification to all of the caller's
// subscriptions, pruning any the push service reports gone.
func SendTestPushHandler(db *sql.DB, dispatcher *notify.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		rows, err := db.Query(
			"SELECT id, user_id, endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = ?",
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		subs := []models.PushSubscription{}
		for rows.Next() {
			var s models.PushSubscription
			if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth); err != nil {
				return err
			}
			subs = append(subs, s)
		}

		if len(subs) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No push subscriptions found. Enable notifications first.")
		}

		payload := notify.Payload{
			Title: "Memodate 🗓️",
			Body:  "Notificações funcionando! Você receberá lembretes dos seus eventos.",
			Tag:   "memodate-test",
			URL:   "/dashboard",
		}

		sent, removed := dispatcher.Deliver(payload, subs)
		log.Printf("Test push for user %d: sent=%d removed=%d", userID, sent, removed)

		if sent == 0 {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to send test notification")
		}

		return c.JSON(fiber.Map{
			"sent":    sent,
			"removed": removed,
		})
	}
}
