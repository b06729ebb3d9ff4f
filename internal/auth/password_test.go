package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("P@ssw0rd1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.NotContains(t, hash, "P@ssw0rd1")

	// Random per-call salt: equal inputs must not produce equal digests.
	other, err := HashPassword("P@ssw0rd1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	malformed := []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=65536,t=3,p=4$tooFewParts",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!badsalt!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$c2FsdHNhbHQ$!!!badhash!!!",
		"$argon2id$v=19$bogusparams$c2FsdHNhbHQ$aGFzaA",
		// Parameters that parse but are out of range for argon2.
		"$argon2id$v=19$m=65536,t=0,p=4$c2FsdHNhbHQ$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHQ$aGFzaA",
		// Empty hash segment decodes to zero bytes.
		"$argon2id$v=19$m=65536,t=3,p=4$c2FsdHNhbHQ$",
	}

	for _, digest := range malformed {
		assert.False(t, VerifyPassword(digest, "anything"), "digest %q should not verify", digest)
	}
}
