package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
)

// HasPermission passes when the user holds at least one of requiredAny.
func HasPermission(user *models.User, requiredAny ...models.Permission) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if user.Permissions.HasAny(requiredAny...) {
		return nil
	}
	return fmt.Errorf("%w: you need one of %s, you have %s",
		ErrForbidden, joinPerms(requiredAny), joinPerms(user.Permissions))
}

func joinPerms(perms []models.Permission) string {
	if len(perms) == 0 {
		return "none"
	}
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}

func requireUser(ctx context.Context) (*models.User, error) {
	u := session.UserFrom(ctx)
	if u == nil {
		return nil, ErrUnauthenticated
	}
	return u, nil
}
