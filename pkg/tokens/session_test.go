package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_SignAndVerify(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("test-app-secret"))
	userID := uuid.NewString()

	token, exp, err := iss.Sign(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), exp, 5*time.Second)

	got, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestIssuer_Verify_WrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := NewIssuer([]byte("one")).Sign(uuid.NewString())
	require.NoError(t, err)

	_, err = NewIssuer([]byte("two")).Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Verify_Expired(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("test-app-secret"))
	iss.Now = func() time.Time { return time.Now().Add(-2 * SessionTTL) }

	token, _, err := iss.Sign(uuid.NewString())
	require.NoError(t, err)

	_, err = SessionClaimsFromToken(token, iss.Secret)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionClaimsFromToken_Garbage(t *testing.T) {
	t.Parallel()

	claims, err := SessionClaimsFromToken("not-a-valid-jwt", []byte("secret"))
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
