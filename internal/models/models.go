package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"created_at"`
}

// Event types accepted by the CRUD layer. The type tag is display metadata
// only; occurrence matching never looks at it.
const (
	EventTypeBirthday    = "BIRTHDAY"
	EventTypeAnniversary = "ANNIVERSARY"
	EventTypeHoliday     = "HOLIDAY"
	EventTypeOther       = "OTHER"
)

type Event struct {
	ID              string    `json:"id"`
	UserID          int       `json:"user_id"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	Type            string    `json:"type"`
	Recurring       bool      `json:"recurring"`
	DaysBeforeAlert int       `json:"days_before_alert"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type PushSubscription struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type EventRequest struct {
	Title           string `json:"title"`
	Date            string `json:"date"` // YYYY-MM-DD
	Type            string `json:"type"`
	Recurring       bool   `json:"recurring"`
	DaysBeforeAlert int    `json:"days_before_alert"`
	Notes           string `json:"notes,omitempty"`
}

type UpdateTimezoneRequest struct {
	Timezone string `json:"timezone"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
