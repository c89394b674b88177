package notify

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"memodate/internal/models"
)

// Result is the aggregate outcome of one daily pass, returned to whatever
// triggered it.
type Result struct {
	Sent          int    `json:"sent"`
	Removed       int    `json:"removed"`
	Today         string `json:"today"` // UTC reference date of the run
	EventsMatched int    `json:"eventsMatched"`
}

// Dispatcher runs the daily notification pass. The push Sender and optional
// Mailer are injected once at startup; subscription deletion is the only
// write the dispatcher performs.
type Dispatcher struct {
	db     *sql.DB
	sender Sender
	mailer *Mailer
}

func NewDispatcher(db *sql.DB, sender Sender, mailer *Mailer) *Dispatcher {
	return &Dispatcher{db: db, sender: sender, mailer: mailer}
}

// recipient is one user with everything the pass needs about them.
type recipient struct {
	models.User
	Events        []models.Event
	Subscriptions []models.PushSubscription
}

// RunDailyPass evaluates every user's events against their local today and
// delivers a push for each due event to all of the user's subscriptions.
// One fan-out read up front; per-user failures are logged and skipped so a
// single bad record never aborts the batch.
func (d *Dispatcher) RunDailyPass(now time.Time) (Result, error) {
	res := Result{Today: LocalToday(now, "UTC").String()}

	if d.sender == nil {
		log.Println("Web push not configured - skipping daily pass")
		return res, nil
	}

	recipients, err := d.loadRecipients()
	if err != nil {
		return res, err
	}

	for _, r := range recipients {
		// Nothing to deliver to, so don't bother resolving their date.
		if len(r.Subscriptions) == 0 {
			continue
		}

		today := LocalToday(now, r.Timezone)

		var due []models.Event
		for _, e := range r.Events {
			if IsDueToday(e, today) {
				due = append(due, e)
			}
		}
		res.EventsMatched += len(due)

		for _, e := range due {
			sent, removed := d.Deliver(Compose(e), r.Subscriptions)
			res.Sent += sent
			res.Removed += removed
		}

		if len(due) > 0 && d.mailer != nil && r.Email != "" {
			if err := d.mailer.SendDigest(r.Email, today, due); err != nil {
				log.Printf("Digest email to user %d failed: %v", r.ID, err)
			}
		}
	}

	log.Printf("Daily pass finished: matched=%d sent=%d removed=%d", res.EventsMatched, res.Sent, res.Removed)
	return res, nil
}

// Deliver fans one payload out to a set of subscriptions. Each delivery is
// independent: a failure on one subscription never prevents attempting the
// next. Endpoints the push service reports gone are deleted (all rows for
// that endpoint) and counted in removed.
func (d *Dispatcher) Deliver(payload Payload, subs []models.PushSubscription) (sent, removed int) {
	if d.sender == nil {
		log.Println("Web push not configured - skipping delivery")
		return 0, 0
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal push payload: %v", err)
		return 0, 0
	}

	pruned := make(map[string]bool)
	for _, sub := range subs {
		if pruned[sub.Endpoint] {
			continue
		}

		err := d.sender.Send(sub, body)
		if err == nil {
			sent++
			continue
		}

		var se *SendError
		if errors.As(err, &se) && se.Reason == ReasonGone {
			n, derr := d.removeEndpoint(sub.Endpoint)
			if derr != nil {
				log.Printf("Failed to remove dead subscription %s: %v", sub.Endpoint, derr)
				continue
			}
			log.Printf("Removed expired subscription (%d rows): %s", n, sub.Endpoint)
			removed += n
			pruned[sub.Endpoint] = true
			continue
		}

		log.Printf("Push to %s failed, will retry on a later run: %v", sub.Endpoint, err)
	}
	return sent, removed
}

// removeEndpoint deletes every subscription row for the endpoint, defensive
// against duplicate rows, and returns how many were deleted.
func (d *Dispatcher) removeEndpoint(endpoint string) (int, error) {
	result, err := d.db.Exec("DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// loadRecipients reads all users with their events and subscriptions in
// three queries and groups them in memory, bounding the read cost of the
// batch regardless of user count.
func (d *Dispatcher) loadRecipients() ([]*recipient, error) {
	rows, err := d.db.Query("SELECT id, COALESCE(email, ''), timezone FROM users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []*recipient
	byID := make(map[int]*recipient)
	for rows.Next() {
		r := &recipient{}
		if err := rows.Scan(&r.ID, &r.Email, &r.Timezone); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	eventRows, err := d.db.Query("SELECT id, user_id, title, date, recurring, days_before_alert FROM events")
	if err != nil {
		return nil, err
	}
	defer eventRows.Close()

	for eventRows.Next() {
		var e models.Event
		if err := eventRows.Scan(&e.ID, &e.UserID, &e.Title, &e.Date, &e.Recurring, &e.DaysBeforeAlert); err != nil {
			log.Printf("Error scanning event for daily pass: %v", err)
			continue
		}
		if r, ok := byID[e.UserID]; ok {
			r.Events = append(r.Events, e)
		}
	}
	if err := eventRows.Err(); err != nil {
		return nil, err
	}

	subRows, err := d.db.Query("SELECT id, user_id, endpoint, p256dh, auth FROM push_subscriptions")
	if err != nil {
		return nil, err
	}
	defer subRows.Close()

	for subRows.Next() {
		var s models.PushSubscription
		if err := subRows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth); err != nil {
			log.Printf("Error scanning subscription for daily pass: %v", err)
			continue
		}
		if r, ok := byID[s.UserID]; ok {
			r.Subscriptions = append(r.Subscriptions, s)
		}
	}
	return recipients, subRows.Err()
}
