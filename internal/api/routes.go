package api

import (
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"memodate/internal/notify"
)

func SetupRoutes(app *fiber.App, db *sql.DB, dispatcher *notify.Dispatcher) {
	api := app.Group("/api")

	// Check if registration is disabled
	disableRegistration := strings.ToLower(os.Getenv("DISABLE_REGISTRATION")) == "true"

	// Configuration endpoint (public)
	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": disableRegistration,
		})
	})

	// Auth routes, rate limited against credential stuffing
	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
	}))
	if !disableRegistration {
		auth.Post("/register", RegisterHandler(db))
	}
	auth.Post("/login", LoginHandler(db))
	auth.Post("/refresh", RefreshTokenHandler(db))
	auth.Post("/logout", LogoutHandler(db))

	// VAPID public key endpoint (public, clients need it to subscribe)
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler())

	// Daily notification pass, guarded by the cron shared secret rather
	// than a user token
	api.Get("/cron/daily", CronAuthMiddleware(), CronDailyHandler(dispatcher))

	// Protected routes
	protected := api.Group("/", AuthMiddleware())

	// Event routes
	events := protected.Group("/events")
	events.Post("/", CreateEventHandler(db))
	events.Get("/", ListEventsHandler(db))
	events.Post("/seed-holidays", SeedHolidaysHandler(db))
	events.Get("/:id", GetEventHandler(db))
	events.Put("/:id", UpdateEventHandler(db))
	events.Delete("/:id", DeleteEventHandler(db))

	// Push subscription routes
	push := protected.Group("/push")
	push.Post("/subscribe", SubscribePushHandler(db))
	push.Delete("/unsubscribe", UnsubscribePushHandler(db))
	push.Post("/test", SendTestPushHandler(db, dispatcher))

	// User profile routes
	user := protected.Group("/user")
	user.Get("/profile", GetUserProfileHandler(db))
	user.Put("/timezone", UpdateTimezoneHandler(db))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
