package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("a-secret", "r-secret", "coinmatch", time.Minute, time.Hour)
	access, refresh, exp, err := tm.GeneratePair("u1", "tutor")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	c, err := tm.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "tutor", c.Role)

	c, err = tm.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)

	_, err = tm.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tm.ParseRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	tm := NewTokenManager("a-secret", "r-secret", "coinmatch", time.Minute, time.Hour)
	other := NewTokenManager("a-secret", "r-secret", "someone-else", time.Minute, time.Hour)
	access, _, _, err := other.GeneratePair("u1", "student")
	require.NoError(t, err)

	_, err = tm.ParseAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("a-secret", "r-secret", "coinmatch", -time.Minute, time.Hour)
	access, _, _, err = expired.GeneratePair("u1", "student")
	require.NoError(t, err)
	_, err = tm.ParseAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ParseAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
