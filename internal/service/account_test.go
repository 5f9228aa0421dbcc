package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
)

func TestSignup_LowercasesEmailAndSetsSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creds := &fakeCreds{}
	ctx := session.WithCredentials(context.Background(), creds)

	res, err := f.accounts.Signup(ctx, SignupInput{Email: "  Mixed@Example.COM ", Password: "pw", Name: "Wes"})
	require.NoError(t, err)

	assert.Equal(t, "mixed@example.com", res.User.Email)
	assert.Equal(t, models.Permissions{models.PermissionUser}, res.User.Permissions)
	assert.NotEqual(t, "pw", res.User.PasswordHash)
	assert.Equal(t, res.Token, creds.token)
	assert.WithinDuration(t, time.Now().Add(365*24*time.Hour), res.Expires, time.Minute)

	stored, err := f.repo.UserByEmail(ctx, "mixed@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, stored.ID)
	assert.Equal(t, []string{"user_signed_up"}, f.events.Types())
}

func TestSignup_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.Signup(ctx, SignupInput{Email: "a@example.com", Password: "", Name: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.accounts.Signup(ctx, SignupInput{Email: "a@example.com", Password: "pw", Name: "x"})
	require.NoError(t, err)
	_, err = f.accounts.Signup(ctx, SignupInput{Email: "A@EXAMPLE.com", Password: "pw", Name: "x"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSignin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.user(t, "known@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"ok", "known@example.com", "password", nil},
		{"ok mixed case", "Known@Example.com", "password", nil},
		{"wrong password", "known@example.com", "nope", ErrInvalidCredentials},
		{"unknown email", "ghost@example.com", "password", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := &fakeCreds{}
			ctx := session.WithCredentials(context.Background(), creds)
			res, err := f.accounts.Signin(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				assert.Empty(t, creds.token)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, creds.token)
		})
	}
}

func TestSignin_DoesNotRevealWhichPartFailed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.user(t, "known@example.com")

	_, wrongPw := f.accounts.Signin(context.Background(), "known@example.com", "nope")
	_, unknown := f.accounts.Signin(context.Background(), "ghost@example.com", "nope")
	require.Error(t, wrongPw)
	require.Error(t, unknown)
	assert.Equal(t, wrongPw.Error(), unknown.Error())
}

func TestSignout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creds := &fakeCreds{token: "x"}

	msg := f.accounts.Signout(session.WithCredentials(context.Background(), creds))
	assert.Equal(t, SignoutMessage, msg)
	assert.True(t, creds.cleared)
}

func TestRequestReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.user(t, "reset@example.com")

	msg, err := f.accounts.RequestReset(context.Background(), "Reset@Example.com")
	require.NoError(t, err)
	assert.Equal(t, RequestResetMessage, msg)

	stored, err := f.repo.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)
	assert.Len(t, *stored.ResetToken, 40)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.True(t, f.clock.t.Add(time.Hour).Equal(*stored.ResetTokenExpiry))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "reset@example.com", f.mailer.sent[0].To)
	assert.Contains(t, f.mailer.sent[0].HTML, *stored.ResetToken)

	_, err = f.accounts.RequestReset(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestReset_MailFailureStillAcknowledges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.user(t, "reset@example.com")
	f.mailer.err = assert.AnError

	msg, err := f.accounts.RequestReset(context.Background(), "reset@example.com")
	require.NoError(t, err)
	assert.Equal(t, RequestResetMessage, msg)
}

func TestResetPassword_Boundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		after   time.Duration
		wantErr error
	}{
		{"one second before expiry", time.Hour - time.Second, nil},
		{"at expiry", time.Hour, nil},
		{"one second after expiry", time.Hour + time.Second, ErrInvalidOrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			u := f.user(t, "r@example.com")
			issued := f.clock.t

			_, err := f.accounts.RequestReset(context.Background(), u.Email)
			require.NoError(t, err)
			stored, err := f.repo.UserByID(context.Background(), u.ID)
			require.NoError(t, err)
			token := *stored.ResetToken

			f.clock.t = issued.Add(tt.after)
			creds := &fakeCreds{}
			ctx := session.WithCredentials(context.Background(), creds)
			res, err := f.accounts.ResetPassword(ctx, token, "newpass", "newpass")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, creds.token)
			assert.Nil(t, res.User.ResetToken)
			assert.Nil(t, res.User.ResetTokenExpiry)

			_, err = f.accounts.Signin(context.Background(), u.Email, "newpass")
			assert.NoError(t, err)
		})
	}
}

func TestResetPassword_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.accounts.ResetPassword(context.Background(), "tok", "a", "b")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = f.accounts.ResetPassword(context.Background(), "unknown", "a", "a")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestUsers_RequiresPermission(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	plain := f.user(t, "plain@example.com")
	admin := f.user(t, "admin@example.com", models.PermissionAdmin)

	_, err := f.accounts.Users(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.accounts.Users(as(plain))
	assert.ErrorIs(t, err, ErrForbidden)

	users, err := f.accounts.Users(as(admin))
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUpdatePermissions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	plain := f.user(t, "plain@example.com")
	target := f.user(t, "target@example.com")
	editor := f.user(t, "editor@example.com", models.PermissionUser, models.PermissionPermissionUpdate)

	_, err := f.accounts.UpdatePermissions(as(plain), target.ID, []string{"ADMIN"})
	assert.ErrorIs(t, err, ErrForbidden)
	unchanged, err := f.repo.UserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Permissions{models.PermissionUser}, unchanged.Permissions)

	_, err = f.accounts.UpdatePermissions(context.Background(), target.ID, []string{"ADMIN"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.accounts.UpdatePermissions(as(editor), target.ID, []string{"SUPERUSER"})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := f.accounts.UpdatePermissions(as(editor), target.ID, []string{"ITEMCREATE", "ITEMDELETE", "ITEMCREATE"})
	require.NoError(t, err)
	assert.Equal(t, models.Permissions{models.PermissionItemCreate, models.PermissionItemDelete}, got.Permissions)

	_, err = f.accounts.UpdatePermissions(as(editor), editor.ID, []string{})
	require.NoError(t, err)
}
