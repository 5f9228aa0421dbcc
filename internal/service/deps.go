package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
}

type TokenSigner interface {
	Sign(userID string) (string, time.Time, error)
}

// AuthResult is a user together with a freshly issued session.
type AuthResult struct {
	User    *models.User
	Token   string
	Expires time.Time
}

func nowOr(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}

// publish sends a domain event. Failures are logged and swallowed.
func publish(ctx context.Context, p events.Publisher, topic string, ev events.Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, topic, ev.EntityID, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_failed", "topic", topic, "type", ev.Type, "error", err)
	}
}
