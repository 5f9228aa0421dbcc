// Package session resolves the signed-in user for a request and carries it
// through the request context.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
)

const CookieName = "token"

// Viewer is the caller of the current request. UserID is set whenever the
// session cookie verified; User is set only when the record also loaded.
type Viewer struct {
	UserID uuid.UUID
	User   *models.User
}

// Credentials writes or clears the session on the client.
type Credentials interface {
	SetSession(token string, expires time.Time)
	ClearSession()
}

type viewerKey struct{}
type credentialsKey struct{}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

func ViewerFrom(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerKey{}).(Viewer)
	return v
}

// UserFrom returns the loaded user of the request, or nil.
func UserFrom(ctx context.Context) *models.User {
	return ViewerFrom(ctx).User
}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFrom never returns nil; without a transport it discards writes.
func CredentialsFrom(ctx context.Context) Credentials {
	if c, ok := ctx.Value(credentialsKey{}).(Credentials); ok && c != nil {
		return c
	}
	return nopCredentials{}
}

type nopCredentials struct{}

func (nopCredentials) SetSession(string, time.Time) {}
func (nopCredentials) ClearSession()                {}
