package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// verifyKeyBytes is the entropy of generated verification keys. At 32 random
// bytes collisions are treated as impossible.
const verifyKeyBytes = 32

// Clock abstracts wall-clock reads so expiry logic stays testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// GenerateKey returns a URL-safe random verification key without padding.
func GenerateKey() (string, error) {
	buf := make([]byte, verifyKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: generate key: %s", ErrInternal, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// KeyExpiry computes an absolute expiry the given number of hours from now.
func KeyExpiry(clock Clock, hours int) time.Time {
	return clock.Now().Add(time.Duration(hours) * time.Hour)
}

// KeyExpired reports whether expiry has passed. A nil expiry is always
// expired so an unset column can never read as "never expires".
func KeyExpired(clock Clock, expiry *time.Time) bool {
	if expiry == nil {
		return true
	}
	return !clock.Now().Before(*expiry)
}
