package domain

import (
	"fmt"
	"time"
)

// PKCE verifier length bounds (RFC 7636 section 4.1).
const (
	CodeChallengeMinLength = 43
	CodeChallengeMaxLength = 128
)

// Session is a server-side record of a granted, scoped access window for a
// user+client pair. Sessions are opaque identifiers, never signed tokens.
type Session struct {
	Recorder

	ID                   string
	UserID               string
	ClientID             string
	Scopes               []string
	CodeChallenge        string
	ExpiresAt            *time.Time // nil = active until explicitly revoked
	Method               AuthenticationMethod
	AuthenticationCodeID *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewSession constructs a session. A nil expiresAt means the session never
// expires until revoked.
func NewSession(
	id, userID, clientID string,
	scopes []string,
	codeChallenge string,
	method AuthenticationMethod,
	authenticationCodeID *string,
	expiresAt *time.Time,
) (*Session, error) {
	if l := len(codeChallenge); l < CodeChallengeMinLength || l > CodeChallengeMaxLength {
		return nil, fmt.Errorf("code challenge must be %d-%d characters: %w",
			CodeChallengeMinLength, CodeChallengeMaxLength, ErrInvalidArgument)
	}
	if _, err := ParseAuthenticationMethod(method.String()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := &Session{
		ID:                   id,
		UserID:               userID,
		ClientID:             clientID,
		Scopes:               scopes,
		CodeChallenge:        codeChallenge,
		ExpiresAt:            expiresAt,
		Method:               method,
		AuthenticationCodeID: authenticationCodeID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.Record(SessionCreated{SessionID: id, UserID: userID, ClientID: clientID, Method: method})
	return s, nil
}

func (s *Session) touch() { s.UpdatedAt = time.Now().UTC() }

// IsActive reports whether the session is live at the given instant:
// no expiry set, or the expiry lies in the future.
func (s *Session) IsActive(now time.Time) bool {
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Revoke expires the session immediately. The record is kept for audit;
// revoking twice is harmless.
func (s *Session) Revoke(now time.Time) {
	s.RevokeAt(now)
}

// RevokeAt sets the expiry to the given time. Last write wins on concurrent
// revocations.
func (s *Session) RevokeAt(expiresAt time.Time) {
	t := expiresAt
	s.ExpiresAt = &t
	s.Record(SessionRevoked{SessionID: s.ID, UserID: s.UserID})
	s.touch()
}

// HasScope reports whether the session grants a single scope.
func (s *Session) HasScope(scope string) bool {
	for _, granted := range s.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every required scope is granted. Order is
// irrelevant; an empty requirement always passes.
func (s *Session) HasAllScopes(required []string) bool {
	for _, scope := range required {
		if !s.HasScope(scope) {
			return false
		}
	}
	return true
}
