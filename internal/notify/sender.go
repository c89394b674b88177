package notify

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"memodate/internal/models"
)

// Reason classifies a delivery failure.
type Reason int

const (
	// ReasonTransient covers network errors, rate limiting and any other
	// failure that may succeed on a later run.
	ReasonTransient Reason = iota
	// ReasonGone means the push service reported the endpoint permanently
	// invalid (404/410); the subscription should be deleted.
	ReasonGone
)

// SendError is the typed failure returned by a Sender.
type SendError struct {
	Reason Reason
	Status int // HTTP status from the push service, 0 if the request never completed
	Err    error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("push send failed: %v", e.Err)
	}
	return fmt.Sprintf("push send failed: status %d", e.Status)
}

func (e *SendError) Unwrap() error { return e.Err }

// Sender delivers one payload to one push subscription. Implementations
// return nil on success or a *SendError classifying the failure.
type Sender interface {
	Send(sub models.PushSubscription, payload []byte) error
}

// WebPushSender sends notifications through the Web Push protocol with VAPID
// authentication. Construct it once at startup and treat it as immutable.
type WebPushSender struct {
	subscriber string
	publicKey  string
	privateKey string
	client     *http.Client
}

// NewWebPushSenderFromEnv builds a sender from the VAPID_* environment
// variables. Returns nil if the keys are not configured.
func NewWebPushSenderFromEnv() *WebPushSender {
	publicKey := os.Getenv("VAPID_PUBLIC_KEY")
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	subscriber := os.Getenv("VAPID_SUBJECT")
	if publicKey == "" || privateKey == "" || subscriber == "" {
		return nil
	}
	return &WebPushSender{
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
		// Bounded per-request timeout so one hung push service connection
		// cannot stall the whole batch.
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebPushSender) Send(sub models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             30,
	})
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return &SendError{Reason: ReasonTransient, Err: err}
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &SendError{Reason: ReasonGone, Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return &SendError{Reason: ReasonTransient, Status: resp.StatusCode}
	}
	return nil
}
