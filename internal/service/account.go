package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/mail"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	ResetTokenTTL   = time.Hour
	resetTokenBytes = 20

	SignoutMessage      = "Goodbye"
	RequestResetMessage = "Sent!"
)

type AccountService struct {
	Repo        *repo.GormRepo
	Hasher      PasswordHasher
	Tokens      TokenSigner
	Mailer      mail.Sender
	Events      events.Publisher
	FrontendURL string
	MailFrom    string
	Now         func() time.Time
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Me returns the signed-in user, or nil for anonymous callers.
func (s *AccountService) Me(ctx context.Context) *models.User {
	return session.UserFrom(ctx)
}

func (s *AccountService) Users(ctx context.Context) ([]models.User, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := HasPermission(user, models.PermissionAdmin, models.PermissionPermissionUpdate); err != nil {
		return nil, err
	}
	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	return users, nil
}

func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "account.signup")

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: email, name and password are required", ErrValidation)
	}

	hash, err := s.Hasher.HashPassword(in.Password)
	if err != nil {
		l.Error("signup_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Permissions:  models.Permissions{models.PermissionUser},
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			l.Warn("signup_error", "reason", "email taken")
			return nil, fmt.Errorf("%w: a user with email %s", ErrConflict, email)
		}
		return nil, storeErr(err, "user")
	}

	res, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, events.TopicUsers, events.Event{
		Type:     "user_signed_up",
		EntityID: user.ID.String(),
		UserID:   user.ID.String(),
	})
	l.Info("signup_ok", "user_id", user.ID)
	return res, nil
}

func (s *AccountService) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "account.signin")

	user, err := s.Repo.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("signin_failed", "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err, "user")
	}
	if !s.Hasher.CheckPassword(user.PasswordHash, password) {
		l.Warn("signin_failed", "reason", "wrong password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

func (s *AccountService) Signout(ctx context.Context) string {
	session.CredentialsFrom(ctx).ClearSession()
	return SignoutMessage
}

// RequestReset stores a one-hour reset token on the user and mails a link.
// A failed mail is logged; the caller still gets the acknowledgement.
func (s *AccountService) RequestReset(ctx context.Context, email string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "account.request_reset")

	email = normalizeEmail(email)
	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: no user found for email %s", ErrNotFound, email)
		}
		return "", storeErr(err, "user")
	}

	token, err := newResetToken()
	if err != nil {
		return "", err
	}
	expiry := nowOr(s.Now).Add(ResetTokenTTL).Truncate(time.Second)
	if err := s.Repo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return "", storeErr(err, "user")
	}

	if s.Mailer != nil {
		err := s.Mailer.Send(ctx, mail.Message{
			From:    s.MailFrom,
			To:      user.Email,
			Subject: "Your Password Reset Token",
			HTML:    mail.ResetEmail(s.FrontendURL, token),
		})
		if err != nil {
			l.Warn("reset_mail_failed", "user_id", user.ID, "error", err)
		}
	}
	return RequestResetMessage, nil
}

func (s *AccountService) ResetPassword(ctx context.Context, token, password, confirm string) (*AuthResult, error) {
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.Repo.UserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, storeErr(err, "user")
	}
	if user.ResetTokenExpiry == nil || nowOr(s.Now).After(*user.ResetTokenExpiry) {
		return nil, ErrInvalidOrExpiredToken
	}

	hash, err := s.Hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}
	updated, err := s.Repo.ResetPassword(ctx, user.ID, hash)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return s.startSession(ctx, updated)
}

// UpdatePermissions replaces the permission set of the target user.
func (s *AccountService) UpdatePermissions(ctx context.Context, userID uuid.UUID, perms []string) (*models.User, error) {
	caller, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := HasPermission(caller, models.PermissionAdmin, models.PermissionPermissionUpdate); err != nil {
		return nil, err
	}

	set := make(models.Permissions, 0, len(perms))
	seen := make(map[models.Permission]bool, len(perms))
	for _, raw := range perms {
		p, ok := models.ParsePermission(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrValidation, raw)
		}
		if !seen[p] {
			seen[p] = true
			set = append(set, p)
		}
	}

	if _, err := s.Repo.UserByID(ctx, userID); err != nil {
		return nil, storeErr(err, "user")
	}
	user, err := s.Repo.UpdatePermissions(ctx, userID, set)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	logging.FromContext(ctx).Info("permissions_updated", "by", caller.ID, "user_id", userID, "permissions", joinPerms(set))
	return user, nil
}

// startSession signs a token for user and hands it to the request's credentials.
func (s *AccountService) startSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	token, exp, err := s.Tokens.Sign(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	session.CredentialsFrom(ctx).SetSession(token, exp)
	return &AuthResult{User: user, Token: token, Expires: exp}, nil
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
