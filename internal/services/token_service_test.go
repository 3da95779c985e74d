package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	s := NewTokenService("secret", time.Hour)

	tok, err := s.IssueSession(7, "company")
	require.NoError(t, err)

	claims, err := s.ParseSession(tok)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "company", claims.AccountType)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	s := NewTokenService("secret", time.Hour)

	reg, err := s.IssueRegistration("a@x.com", "A", "hash", "candidate")
	require.NoError(t, err)
	_, err = s.ParseSession(reg)
	assert.ErrorIs(t, err, ErrInvalidToken)

	reset, err := s.IssueReset(1, "a@x.com", "hash")
	require.NoError(t, err)
	_, err = s.ParseRegistration(reset)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherSecretAndExpiry(t *testing.T) {
	s := NewTokenService("secret", time.Hour)
	tok, err := s.IssueSession(1, "candidate")
	require.NoError(t, err)

	_, err = NewTokenService("other", time.Hour).ParseSession(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.ParseSession(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegistrationTicketExpiresAfterTenMinutes(t *testing.T) {
	s := NewTokenService("secret", time.Hour)
	tok, err := s.IssueRegistration("a@x.com", "A", "hash", "candidate")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err = s.ParseRegistration(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
