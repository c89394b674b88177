package api

import (
	"database/sql"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"memodate/internal/models"
)

var validEventTypes = map[string]bool{
	models.EventTypeBirthday:    true,
	models.EventTypeAnniversary: true,
	models.EventTypeHoliday:     true,
	models.EventTypeOther:       true,
}

// parsedEvent holds validated CRUD input.
type parsedEvent struct {
	Title           string
	Date            time.Time
	Type            string
	Recurring       bool
	DaysBeforeAlert int
	Notes           string
}

// parseEventRequest validates and normalizes event input: trimmed title of
// 2-200 chars, a parseable YYYY-MM-DD date, a known type, the lead time
// clamped to 0-365 days (bounds the matcher's year window) and notes capped
// at 1000 chars.
func parseEventRequest(req models.EventRequest) (*parsedEvent, error) {
	title := strings.TrimSpace(req.Title)
	if len(title) < 2 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Title must be at least 2 characters")
	}
	if len(title) > 200 {
		title = title[:200]
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
	}

	if !validEventTypes[req.Type] {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid event type")
	}

	days := req.DaysBeforeAlert
	if days < 0 {
		days = 0
	}
	if days > 365 {
		days = 365
	}

	notes := req.Notes
	if len(notes) > 1000 {
		notes = notes[:1000]
	}

	return &parsedEvent{
		Title:           title,
		Date:            date,
		Type:            req.Type,
		Recurring:       req.Recurring,
		DaysBeforeAlert: days,
		Notes:           notes,
	}, nil
}

func scanEvent(row interface{ Scan(...interface{}) error }, e *models.Event) error {
	var notes sql.NullString
	err := row.Scan(
		&e.ID, &e.UserID, &e.Title, &e.Date, &e.Type, &e.Recurring,
		&e.DaysBeforeAlert, &notes, &e.CreatedAt, &e.UpdatedAt,
	)
	e.Notes = notes.String
	return err
}

const eventColumns = "id, user_id, title, date, type, recurring, days_before_alert, notes, created_at, updated_at"

func CreateEventHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.EventRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		fields, err := parseEventRequest(req)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		_, err = db.Exec(
			`INSERT INTO events (id, user_id, title, date, type, recurring, days_before_alert, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, userID, fields.Title, fields.Date, fields.Type, fields.Recurring, fields.DaysBeforeAlert, nullable(fields.Notes),
		)
		if err != nil {
			return err
		}

		var event models.Event
		if err := scanEvent(db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", id), &event); err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(event)
	}
}

func ListEventsHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		rows, err := db.Query(
			"SELECT "+eventColumns+" FROM events WHERE user_id = ? ORDER BY date ASC",
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		events := []models.Event{}
		for rows.Next() {
			var e models.Event
			if err := scanEvent(rows, &e); err != nil {
				return err
			}
			events = append(events, e)
		}

		return c.JSON(events)
	}
}

func GetEventHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		eventID := c.Params("id")

		var event models.Event
		err := scanEvent(db.QueryRow(
			"SELECT "+eventColumns+" FROM events WHERE id = ? AND user_id = ?",
			eventID, userID,
		), &event)

		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "Event not found")
		}
		if err != nil {
			return err
		}

		return c.JSON(event)
	}
}

func UpdateEventHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		eventID := c.Params("id")

		var req models.EventRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		fields, err := parseEventRequest(req)
		if err != nil {
			return err
		}

		result, err := db.Exec(
			`UPDATE events SET title = ?, date = ?, type = ?, recurring = ?, days_before_alert = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND user_id = ?`,
			fields.Title, fields.Date, fields.Type, fields.Recurring, fields.DaysBeforeAlert, nullable(fields.Notes),
			eventID, userID,
		)
		if err != nil {
			return err
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Event not found")
		}

		var event models.Event
		if err := scanEvent(db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", eventID), &event); err != nil {
			return err
		}

		return c.JSON(event)
	}
}

func DeleteEventHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		eventID := c.Params("id")

		result, err := db.Exec(
			"DELETE FROM events WHERE id = ? AND user_id = ?",
			eventID, userID,
		)
		if err != nil {
			return err
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Event not found")
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
