// Package cryptox provides the password hashing and random token primitives
// used by the authentication core.
package cryptox

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor applied to new password hashes.
const DefaultBcryptCost = 12

// Hasher hashes and verifies password-style secrets. The zero value uses
// DefaultBcryptCost.
type Hasher struct {
	Cost int
}

// Hash returns a salted bcrypt hash of plaintext.
func (h Hasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost <= 0 {
		cost = DefaultBcryptCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash. It never returns
// an error: malformed hashes verify as false, the same as a mismatch, so the
// caller cannot distinguish the two beyond bcrypt's own timing.
func (h Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
