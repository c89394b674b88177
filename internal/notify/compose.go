package notify

import (
	"fmt"

	"memodate/internal/models"
)

// Payload is the notification body sent to push clients. The service worker
// renders Title/Body and uses Tag to replace a prior notification for the
// same event instead of stacking a new one.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Compose renders the push payload for a due event. Phrasing depends on the
// lead time: the alert fires daysBeforeAlert days before the occurrence, so
// lead 0 means the event is today, lead 1 tomorrow.
func Compose(e models.Event) Payload {
	var body string
	switch e.DaysBeforeAlert {
	case 0:
		body = fmt.Sprintf("Hoje é %s!", e.Title)
	case 1:
		body = fmt.Sprintf("%s é amanhã!", e.Title)
	default:
		body = fmt.Sprintf("%s em %d dias", e.Title, e.DaysBeforeAlert)
	}

	return Payload{
		Title: "Memodate 🗓️",
		Body:  body,
		Tag:   "event-" + e.ID,
		URL:   "/dashboard",
	}
}
