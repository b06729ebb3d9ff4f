package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueToken(t *testing.T) {
	before := time.Now()
	token, expiresAt, err := IssueToken(time.Hour)
	require.NoError(t, err)

	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(before.Add(59*time.Minute)))
	assert.True(t, expiresAt.Before(before.Add(61*time.Minute)))

	other, _, err := IssueToken(time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestTokenExpired(t *testing.T) {
	t.Run("nil expiry is expired", func(t *testing.T) {
		assert.True(t, TokenExpired(nil))
	})

	t.Run("past expiry is expired", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		assert.True(t, TokenExpired(&past))
	})

	t.Run("expiry exactly now is expired", func(t *testing.T) {
		now := time.Now()
		assert.True(t, TokenExpired(&now))
	})

	t.Run("future expiry is valid", func(t *testing.T) {
		future := time.Now().Add(time.Minute)
		assert.False(t, TokenExpired(&future))
	})
}
