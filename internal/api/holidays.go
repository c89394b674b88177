package api

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"memodate/internal/models"
)

type holidayDef struct {
	Title           string
	Month           time.Month
	Day             int
	Year            int // only set for moveable feasts
	Recurring       bool
	DaysBeforeAlert int
	Notes           string
}

// Feriados fixos: mesma data todo ano.
var fixedHolidays = []holidayDef{
	{Title: "Ano Novo", Month: 1, Day: 1, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Dia Internacional da Mulher", Month: 3, Day: 8, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Tiradentes", Month: 4, Day: 21, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Dia do Trabalho", Month: 5, Day: 1, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Dia dos Namorados", Month: 6, Day: 12, Recurring: true, DaysBeforeAlert: 7},
	{Title: "Festa Junina", Month: 6, Day: 24, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Independência do Brasil", Month: 9, Day: 7, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Nossa Senhora Aparecida", Month: 10, Day: 12, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Dia das Crianças", Month: 10, Day: 12, Recurring: true, DaysBeforeAlert: 7},
	{Title: "Finados", Month: 11, Day: 2, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Proclamação da República", Month: 11, Day: 15, Recurring: true, DaysBeforeAlert: 1},
	{Title: "Natal", Month: 12, Day: 25, Recurring: true, DaysBeforeAlert: 7},
	{Title: "Réveillon", Month: 12, Day: 31, Recurring: true, DaysBeforeAlert: 1},
}

// Datas móveis de 2026, seeded as one-off events.
var moveableHolidays = []holidayDef{
	{Title: "Carnaval", Month: 2, Day: 17, Year: 2026, DaysBeforeAlert: 7, Notes: "Data móvel — varia a cada ano."},
	{Title: "Sexta-feira Santa", Month: 4, Day: 3, Year: 2026, DaysBeforeAlert: 1, Notes: "Data móvel — varia a cada ano."},
	{Title: "Páscoa", Month: 4, Day: 5, Year: 2026, DaysBeforeAlert: 7, Notes: "Data móvel — varia a cada ano."},
	{Title: "Dia das Mães", Month: 5, Day: 10, Year: 2026, DaysBeforeAlert: 7, Notes: "2º domingo de maio — varia a cada ano."},
	{Title: "Corpus Christi", Month: 6, Day: 4, Year: 2026, DaysBeforeAlert: 1, Notes: "Data móvel — varia a cada ano."},
	{Title: "Dia dos Pais", Month: 8, Day: 9, Year: 2026, DaysBeforeAlert: 7, Notes: "2º domingo de agosto — varia a cada ano."},
}

// SeedHolidaysHandler imports the Brazilian holiday set as HOLIDAY events
// for the caller, skipping titles they already have. Safe to call again; the
// second run creates nothing.
func SeedHolidaysHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		rows, err := db.Query(
			"SELECT title FROM events WHERE user_id = ? AND type = ?",
			userID, models.EventTypeHoliday,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		existing := make(map[string]bool)
		for rows.Next() {
			var title string
			if err := rows.Scan(&title); err != nil {
				return err
			}
			existing[title] = true
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(
			`INSERT INTO events (id, user_id, title, date, type, recurring, days_before_alert, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		currentYear := time.Now().Year()
		created := 0
		for _, h := range append(append([]holidayDef{}, fixedHolidays...), moveableHolidays...) {
			if existing[h.Title] {
				continue
			}
			year := h.Year
			if year == 0 {
				year = currentYear
			}
			date := time.Date(year, h.Month, h.Day, 0, 0, 0, 0, time.UTC)
			if _, err := stmt.Exec(
				uuid.NewString(), userID, h.Title, date, models.EventTypeHoliday,
				h.Recurring, h.DaysBeforeAlert, nullable(h.Notes),
			); err != nil {
				return err
			}
			created++
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		return c.JSON(fiber.Map{"created": created})
	}
}
