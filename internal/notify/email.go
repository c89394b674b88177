package notify

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"memodate/internal/models"
)

// Mailer sends an optional plain-text digest of the day's due events to
// users who have an email on file. Push delivery never depends on it; a
// digest failure is logged by the caller and nothing else.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewMailerFromEnv builds a mailer from the SMTP_* environment variables.
// Returns nil if SMTP is not configured, which disables the digest channel.
func NewMailerFromEnv() *Mailer {
	host := os.Getenv("SMTP_HOST")
	from := os.Getenv("SMTP_FROM")
	if host == "" || from == "" {
		return nil
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	return &Mailer{
		host:     host,
		port:     port,
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     from,
	}
}

func (m *Mailer) SendDigest(to string, today CalendarDate, events []models.Event) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Seus lembretes de %s:\r\n\r\n", today)
	for _, e := range events {
		fmt.Fprintf(&b, "- %s\r\n", Compose(e).Body)
	}

	msg := strings.Join([]string{
		"From: Memodate <" + m.from + ">",
		"To: " + to,
		"Subject: Memodate — lembretes de hoje",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		b.String(),
	}, "\r\n")

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send digest email: %w", err)
	}
	return nil
}
