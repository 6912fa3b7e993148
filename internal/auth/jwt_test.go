package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	v := NewVerifier("secret", "auth")
	userID := uuid.New()

	token, err := v.Issue(userID, time.Minute)
	require.NoError(t, err)

	got, err := v.ParseUserID(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("other", "").Issue(uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("secret", "").ParseUserID(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	v := NewVerifier("secret", "")
	token, err := v.Issue(uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = v.ParseUserID(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, err := NewVerifier("secret", "someone-else").Issue(uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("secret", "auth").ParseUserID(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNonUUIDSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewVerifier("secret", "").ParseUserID(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := NewVerifier("secret", "").ParseUserID("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
