package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type UserLoader interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Middleware resolves the session cookie in two stages: token to user id,
// then user id to user record. Either stage failing leaves the request
// anonymous instead of rejecting it.
func Middleware(tokens TokenVerifier, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			v := Resolve(ctx, tokens, users, cookieValue(c))
			c.SetRequest(c.Request().WithContext(WithViewer(ctx, v)))
			return next(c)
		}
	}
}

func Resolve(ctx context.Context, tokens TokenVerifier, users UserLoader, token string) Viewer {
	var v Viewer
	if token == "" {
		return v
	}
	l := logging.FromContext(ctx).With("component", "session")

	sub, err := tokens.Verify(token)
	if err != nil {
		l.Debug("session_ignored", "reason", "token did not verify", "error", err)
		return v
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		l.Debug("session_ignored", "reason", "subject is not a user id", "error", err)
		return v
	}
	v.UserID = id

	user, err := users.UserByID(ctx, id)
	if err != nil {
		l.Info("session_user_missing", "user_id", id, "error", err)
		return v
	}
	v.User = user
	return v
}

func cookieValue(c echo.Context) string {
	ck, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}
