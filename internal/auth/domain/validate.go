package domain

import "time"

// SessionValidation carries the conditions a caller demands of a session.
type SessionValidation struct {
	UserID         string
	RequiredScopes []string
	ClientID       string
	CodeChallenge  string
	Method         AuthenticationMethod
}

// ValidateSession runs the validation gates in a fixed total order:
// ownership, scope, liveness, client binding, challenge binding, method
// assurance. The first failing gate determines the error; validation is a
// pure read with no side effects. Lookup (gate one) happens before this
// function — callers resolve the session id against the repository first.
func ValidateSession(s *Session, v SessionValidation, now time.Time) error {
	if s.UserID != v.UserID {
		return ErrSessionOwnership
	}
	if !s.HasAllScopes(v.RequiredScopes) {
		return ErrInsufficientScope
	}
	if !s.IsActive(now) {
		return ErrSessionExpired
	}
	if s.ClientID != v.ClientID {
		return ErrClientMismatch
	}
	// Exact string equality. Deriving the challenge from the verifier
	// correctly is the caller's responsibility.
	if s.CodeChallenge != v.CodeChallenge {
		return ErrChallengeMismatch
	}
	if !s.Method.SameAssurance(v.Method) {
		return ErrMethodMismatch
	}
	return nil
}
