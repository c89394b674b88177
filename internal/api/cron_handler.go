package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"memodate/internal/notify"
)

// CronDailyHandler runs the daily notification pass and returns its
// aggregate counters. Triggered by an external scheduler, once per day.
func CronDailyHandler(dispatcher *notify.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := dispatcher.RunDailyPass(time.Now())
		if err != nil {
			return err
		}
		return c.JSON(result)
	}
}
