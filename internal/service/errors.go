package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

// The message of each sentinel is shown to the client as is.
var (
	ErrUnauthenticated       = errors.New("you must be logged in to do that")
	ErrForbidden             = errors.New("you do not have permission to do that")
	ErrNotFound              = errors.New("not found")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrPasswordMismatch      = errors.New("your passwords don't match")
	ErrInvalidOrExpiredToken = errors.New("this reset token is either invalid or expired")
	ErrUpstream              = errors.New("upstream service failed")
	ErrValidation            = errors.New("validation failed")
	ErrConflict              = errors.New("already exists")
)

var public = []error{
	ErrUnauthenticated,
	ErrForbidden,
	ErrNotFound,
	ErrInvalidCredentials,
	ErrPasswordMismatch,
	ErrInvalidOrExpiredToken,
	ErrUpstream,
	ErrValidation,
	ErrConflict,
}

var errInternal = errors.New("internal server error")

// Public returns err unchanged when it wraps one of the sentinels above.
// Anything else is logged and replaced by a generic message.
func Public(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	for _, p := range public {
		if errors.Is(err, p) {
			return err
		}
	}
	logging.FromContext(ctx).Error("internal_error", "error", err)
	return errInternal
}

// storeErr maps store errors onto sentinels, describing the subject.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: no %s found", ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
