package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// Token TTLs. Verification links are long-lived, reset links are not.
const (
	VerificationTokenTTL = 24 * time.Hour
	ResetTokenTTL        = 1 * time.Hour
)

// IssueToken creates a cryptographically random single-use token together
// with its absolute expiry. Storing the absolute timestamp avoids having to
// recompute issued-at + ttl later.
func IssueToken(ttl time.Duration) (string, time.Time, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}

	return base64.URLEncoding.EncodeToString(b), time.Now().Add(ttl), nil
}

// TokenExpired reports whether a token expiry has passed. A missing expiry
// counts as expired, and the boundary is exclusive: a token whose expiry is
// exactly now is no longer valid.
func TokenExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return !time.Now().Before(*expiresAt)
}
