package domain

import "time"

// AuthenticationCode is a short-lived, single-use token minted at login and
// exchanged for a session. Only its SHA-256 fingerprint is persisted.
type AuthenticationCode struct {
	ID            string
	UserID        string
	ClientID      string
	CodeHash      string
	Scopes        []string
	CodeChallenge string // optional PKCE challenge
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsConsumed reports whether the code has already been exchanged.
func (c *AuthenticationCode) IsConsumed() bool {
	return c.ConsumedAt != nil
}

// IsExpired reports whether the code's lifetime has passed.
func (c *AuthenticationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Consume marks the code as exchanged. A consumed or expired code cannot be
// consumed again.
func (c *AuthenticationCode) Consume(now time.Time) error {
	if c.IsConsumed() {
		return ErrCodeConsumed
	}
	if c.IsExpired(now) {
		return ErrCodeExpired
	}

	t := now
	c.ConsumedAt = &t
	c.UpdatedAt = now
	return nil
}
