// Package billing applies subscription webhook events to user accounts.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lampstack/versekeeper/internal/app/domain/user"
	"github.com/lampstack/versekeeper/internal/app/storage"
	"github.com/lampstack/versekeeper/pkg/logger"
)

var (
	// ErrBadSignature is returned when the webhook signature does not match.
	ErrBadSignature = errors.New("webhook signature mismatch")
	// ErrUnknownEvent is returned for event types the service does not handle.
	ErrUnknownEvent = errors.New("unknown webhook event type")
	// ErrUserNotFound mirrors the storage sentinel for unknown users.
	ErrUserNotFound = errors.New("user not found")
)

// Event is the payload the billing provider posts to the webhook.
type Event struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
}

// Event types the service acts on, following the provider's naming.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Service verifies and applies billing webhooks.
type Service struct {
	users  storage.UserStore
	secret []byte
	log    *logger.Logger
}

// New constructs a billing service verifying webhooks with secret.
func New(users storage.UserStore, secret []byte, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("billing")
	}
	return &Service{
		users:  users,
		secret: secret,
		log:    log,
	}
}

// Sign computes the hex HMAC-SHA256 signature for a payload. Exposed for
// tests and local tooling.
func (s *Service) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhook verifies the signature, decodes the event, and flips the
// user's premium flag accordingly. Events are idempotent: re-delivery leaves
// the account in the same state.
func (s *Service) HandleWebhook(ctx context.Context, signature string, payload []byte) (user.User, error) {
	if !hmac.Equal([]byte(signature), []byte(s.Sign(payload))) {
		return user.User{}, ErrBadSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return user.User{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	if event.UserID <= 0 {
		return user.User{}, fmt.Errorf("webhook payload missing user_id")
	}

	var premium bool
	switch event.Type {
	case EventCheckoutCompleted, EventSubscriptionUpdated:
		premium = true
	case EventSubscriptionDeleted:
		premium = false
	default:
		return user.User{}, fmt.Errorf("%w: %s", ErrUnknownEvent, event.Type)
	}

	u, err := s.users.SetUserPremium(ctx, event.UserID, premium)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).WithField("event", event.Type).
		Infof("premium set to %t", premium)
	return u, nil
}
