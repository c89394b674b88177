package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodate/internal/api"
	"memodate/internal/database"
	"memodate/internal/models"
	"memodate/internal/notify"
)

// stubSender counts deliveries and fails configured endpoints.
type stubSender struct {
	fail map[string]error
	sent int
}

func (s *stubSender) Send(sub models.PushSubscription, payload []byte) error {
	if err, ok := s.fail[sub.Endpoint]; ok {
		return err
	}
	s.sent++
	return nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestApp(db *sql.DB, sender notify.Sender) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	api.SetupRoutes(app, db, notify.NewDispatcher(db, sender, nil))
	return app
}

func registerTestUser(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	body, _ := json.Marshal(models.RegisterRequest{
		Username: username,
		Password: "password123",
	})
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var authResp models.AuthResponse
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &authResp)
	if authResp.Token == "" {
		t.Fatal("Expected token in response")
	}
	return authResp.Token
}

func doRequest(t *testing.T, app *fiber.App, token, method, path string, payload interface{}) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody
}

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})

	registerTestUser(t, app, "testuser")

	body, _ := json.Marshal(models.LoginRequest{Username: "testuser", Password: "password123"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var loginResp models.AuthResponse
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &loginResp)

	if loginResp.Token == "" {
		t.Fatal("Expected token in response")
	}
	if loginResp.User.Timezone != database.DefaultTimezone {
		t.Fatalf("Expected default timezone %s, got %s", database.DefaultTimezone, loginResp.User.Timezone)
	}
}

func TestCreateEventClampsLeadTime(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})
	token := registerTestUser(t, app, "testuser")

	status, body := doRequest(t, app, token, "POST", "/api/events/", models.EventRequest{
		Title:           "Natal",
		Date:            "2025-12-25",
		Type:            models.EventTypeHoliday,
		Recurring:       true,
		DaysBeforeAlert: 9999,
	})
	if status != 201 {
		t.Fatalf("Expected status 201, got %d: %s", status, string(body))
	}

	var event models.Event
	json.Unmarshal(body, &event)
	if event.DaysBeforeAlert != 365 {
		t.Fatalf("Expected days_before_alert clamped to 365, got %d", event.DaysBeforeAlert)
	}
	if event.ID == "" {
		t.Fatal("Expected generated event id")
	}
}

func TestCreateEventValidation(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})
	token := registerTestUser(t, app, "testuser")

	cases := []models.EventRequest{
		{Title: "x", Date: "2025-12-25", Type: models.EventTypeOther},     // title too short
		{Title: "Natal", Date: "25/12/2025", Type: models.EventTypeOther}, // bad date format
		{Title: "Natal", Date: "2025-12-25", Type: "FESTIVAL"},            // unknown type
	}
	for i, req := range cases {
		status, _ := doRequest(t, app, token, "POST", "/api/events/", req)
		if status != 400 {
			t.Fatalf("Case %d: expected status 400, got %d", i, status)
		}
	}
}

func TestEventCRUD(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})
	token := registerTestUser(t, app, "testuser")

	// Create
	status, body := doRequest(t, app, token, "POST", "/api/events/", models.EventRequest{
		Title:           "Aniversário",
		Date:            "2020-06-10",
		Type:            models.EventTypeBirthday,
		Recurring:       true,
		DaysBeforeAlert: 1,
		Notes:           "comprar presente",
	})
	if status != 201 {
		t.Fatalf("Expected status 201, got %d: %s", status, string(body))
	}
	var created models.Event
	json.Unmarshal(body, &created)

	// List
	status, body = doRequest(t, app, token, "GET", "/api/events/", nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	var events []models.Event
	json.Unmarshal(body, &events)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Notes != "comprar presente" {
		t.Fatalf("Expected notes to round-trip, got %q", events[0].Notes)
	}

	// Update
	status, body = doRequest(t, app, token, "PUT", "/api/events/"+created.ID, models.EventRequest{
		Title:           "Aniversário da Hanna",
		Date:            "2020-06-10",
		Type:            models.EventTypeBirthday,
		Recurring:       true,
		DaysBeforeAlert: 7,
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d: %s", status, string(body))
	}
	var updated models.Event
	json.Unmarshal(body, &updated)
	if updated.Title != "Aniversário da Hanna" || updated.DaysBeforeAlert != 7 {
		t.Fatalf("Update not applied: %+v", updated)
	}

	// Delete
	status, _ = doRequest(t, app, token, "DELETE", "/api/events/"+created.ID, nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	status, _ = doRequest(t, app, token, "GET", "/api/events/"+created.ID, nil)
	if status != 404 {
		t.Fatalf("Expected status 404 after delete, got %d", status)
	}
}

func TestEventOwnershipIsolation(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})
	owner := registerTestUser(t, app, "owner")
	other := registerTestUser(t, app, "other")

	status, body := doRequest(t, app, owner, "POST", "/api/events/", models.EventRequest{
		Title: "Natal", Date: "2025-12-25", Type: models.EventTypeHoliday,
	})
	if status != 201 {
		t.Fatalf("Expected status 201, got %d: %s", status, string(body))
	}
	var created models.Event
	json.Unmarshal(body, &created)

	status, _ = doRequest(t, app, other, "GET", "/api/events/"+created.ID, nil)
	if status != 404 {
		t.Fatalf("Expected status 404 for another user's event, got %d", status)
	}
	status, _ = doRequest(t, app, other, "DELETE", "/api/events/"+created.ID, nil)
	if status != 404 {
		t.Fatalf("Expected status 404 deleting another user's event, got %d", status)
	}
}

func TestUpdateTimezone(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})
	token := registerTestUser(t, app, "testuser")

	status, _ := doRequest(t, app, token, "PUT", "/api/user/timezone", models.UpdateTimezoneRequest{Timezone: "Europe/Lisbon"})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}

	var tz string
	if err := db.QueryRow("SELECT timezone FROM users WHERE username = 'testuser'").Scan(&tz); err != nil {
		t.Fatal(err)
	}
	if tz != "Europe/Lisbon" {
		t.Fatalf("Expected timezone Europe/Lisbon, got %s", tz)
	}

	status, _ = doRequest(t, app, token, "PUT", "/api/user/timezone", models.UpdateTimezoneRequest{Timezone: "Not/AZone"})
	if status != 400 {
		t.Fatalf("Expected status 400 for unknown timezone, got %d", status)
	}
}

func TestSubscribePushUpsert(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})
	token := registerTestUser(t, app, "testuser")

	sub := models.PushSubscription{Endpoint: "https://push.example/e1", P256dh: "key1", Auth: "auth1"}
	status, _ := doRequest(t, app, token, "POST", "/api/push/subscribe", sub)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}

	// Resubscribe with rotated keys: row is replaced, not duplicated
	sub.P256dh = "key2"
	status, _ = doRequest(t, app, token, "POST", "/api/push/subscribe", sub)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}

	var count int
	var p256dh string
	if err := db.QueryRow("SELECT COUNT(*) FROM push_subscriptions").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("SELECT p256dh FROM push_subscriptions WHERE endpoint = ?", sub.Endpoint).Scan(&p256dh); err != nil {
		t.Fatal(err)
	}
	if count != 1 || p256dh != "key2" {
		t.Fatalf("Expected single upserted row with key2, got count=%d p256dh=%s", count, p256dh)
	}

	// Unsubscribe
	status, _ = doRequest(t, app, token, "DELETE", "/api/push/unsubscribe", fiber.Map{"endpoint": sub.Endpoint})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM push_subscriptions").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 subscriptions after unsubscribe, got %d", count)
	}
}

func TestSeedHolidaysIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})
	token := registerTestUser(t, app, "testuser")

	status, body := doRequest(t, app, token, "POST", "/api/events/seed-holidays", fiber.Map{})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d: %s", status, string(body))
	}
	var first struct {
		Created int `json:"created"`
	}
	json.Unmarshal(body, &first)
	if first.Created == 0 {
		t.Fatal("Expected first seed to create holidays")
	}

	status, body = doRequest(t, app, token, "POST", "/api/events/seed-holidays", fiber.Map{})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	var second struct {
		Created int `json:"created"`
	}
	json.Unmarshal(body, &second)
	if second.Created != 0 {
		t.Fatalf("Expected second seed to create 0, got %d", second.Created)
	}
}

func TestCronDailyAuthorization(t *testing.T) {
	t.Setenv("CRON_SECRET", "test-cron-secret")

	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})

	// No token
	req := httptest.NewRequest("GET", "/api/cron/daily", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}

	// Wrong token
	req = httptest.NewRequest("GET", "/api/cron/daily", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
}

func TestCronDailyRunsPass(t *testing.T) {
	t.Setenv("CRON_SECRET", "test-cron-secret")

	db := setupTestDB(t)
	sender := &stubSender{}
	app := setupTestApp(db, sender)

	// A user in UTC with a recurring event occurring today and lead 0
	res, err := db.Exec(
		"INSERT INTO users (username, password_hash, timezone) VALUES ('cronuser', 'x', 'UTC')",
	)
	if err != nil {
		t.Fatal(err)
	}
	userID, _ := res.LastInsertId()

	today := time.Now().UTC()
	if _, err := db.Exec(
		"INSERT INTO events (id, user_id, title, date, recurring, days_before_alert) VALUES ('evt-cron', ?, 'Natal', ?, 1, 0)",
		userID, time.Date(2000, today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
	); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		"INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth) VALUES (?, 'https://push.example/cron', 'k', 'a')",
		userID,
	); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/cron/daily", nil)
	req.Header.Set("Authorization", "Bearer test-cron-secret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result notify.Result
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &result)

	if result.Sent != 1 || result.Removed != 0 || result.EventsMatched != 1 {
		t.Fatalf("Expected sent=1 removed=0 matched=1, got %+v", result)
	}
	if sender.sent != 1 {
		t.Fatalf("Expected 1 delivery through the sender, got %d", sender.sent)
	}
}

func TestCronDailyPrunesGoneSubscriptions(t *testing.T) {
	t.Setenv("CRON_SECRET", "test-cron-secret")

	db := setupTestDB(t)
	const dead = "https://push.example/dead"
	sender := &stubSender{fail: map[string]error{
		dead: &notify.SendError{Reason: notify.ReasonGone, Status: 410},
	}}
	app := setupTestApp(db, sender)

	res, err := db.Exec("INSERT INTO users (username, password_hash, timezone) VALUES ('pruned', 'x', 'UTC')")
	if err != nil {
		t.Fatal(err)
	}
	userID, _ := res.LastInsertId()

	today := time.Now().UTC()
	if _, err := db.Exec(
		"INSERT INTO events (id, user_id, title, date, recurring, days_before_alert) VALUES ('evt-1', ?, 'Natal', ?, 1, 0)",
		userID, time.Date(2000, today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
	); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		"INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth) VALUES (?, ?, 'k', 'a')",
		userID, dead,
	); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/cron/daily", nil)
	req.Header.Set("Authorization", "Bearer test-cron-secret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result notify.Result
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &result)

	if result.Sent != 0 || result.Removed != 1 {
		t.Fatalf("Expected sent=0 removed=1, got %+v", result)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM push_subscriptions").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("Expected dead subscription removed, got %d rows", count)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, &stubSender{})

	for _, path := range []string{"/api/events/", "/api/user/profile"} {
		req := httptest.NewRequest("GET", path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 401 {
			t.Fatalf("Expected status 401 for %s, got %d", path, resp.StatusCode)
		}
	}
}
