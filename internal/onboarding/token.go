package onboarding

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// IssueToken generates a cryptographically unguessable session token and its
// expiry. ttl <= 0 falls back to defaultTTL.
func IssueToken(ttl, defaultTTL time.Duration) (token string, expiresAt time.Time, err error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	return hex.EncodeToString(b), time.Now().Add(ttl), nil
}
