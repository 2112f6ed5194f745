package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost is the bcrypt cost factor used for all password hashes.
const hashCost = 10

// Hasher performs one-way password hashing and verification.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements Hasher with bcrypt. Each call salts independently,
// so hashing the same password twice yields different outputs.
type BcryptHasher struct {
	cost int
}

// NewHasher constructs a BcryptHasher at the default cost.
func NewHasher() *BcryptHasher {
	return &BcryptHasher{cost: hashCost}
}

// Hash derives a salted hash from the plaintext password.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %s", ErrInternal, err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A mismatch or a malformed
// hash returns false, never an error.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

var _ Hasher = (*BcryptHasher)(nil)
