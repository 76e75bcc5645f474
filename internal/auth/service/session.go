package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/events"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/pkg/cryptox"
	"github.com/castellan/castellan/pkg/idx"
	"github.com/castellan/castellan/pkg/slogx"
)

// SessionsService owns the session lifecycle: creation (from a code or
// directly after a verified factor), revocation, and validation.
type SessionsService struct {
	Store      store.Store
	Dispatcher *events.Dispatcher

	// TTL bounds new sessions. Zero means sessions live until revoked.
	TTL time.Duration
}

func (s *SessionsService) expiry(now time.Time) *time.Time {
	if s.TTL <= 0 {
		return nil
	}
	t := now.Add(s.TTL)
	return &t
}

// CreateSessionFromCode redeems a single-use authentication code for a
// session. The code lookup, consumption, and session insert happen in one
// transaction so a code can never yield two sessions.
func (s *SessionsService) CreateSessionFromCode(ctx context.Context, rawCode, codeChallenge string, method domain.AuthenticationMethod) (domain.Session, error) {
	var session *domain.Session
	now := time.Now().UTC()

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		code, err := tx.AuthenticationCodes().GetAuthenticationCodeByHash(ctx, cryptox.FingerprintToken(rawCode))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("authentication code: %w", domain.ErrNotFound)
			}
			return err
		}

		// The challenge presented at redemption must be the one the code was
		// minted with, otherwise the session's PKCE binding would silently
		// drift from the code's.
		if code.CodeChallenge != codeChallenge {
			return fmt.Errorf("authentication code: %w", domain.ErrChallengeMismatch)
		}

		if err := code.Consume(now); err != nil {
			return err
		}
		if err := tx.AuthenticationCodes().MarkAuthenticationCodeConsumed(ctx, code.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Lost the race to a concurrent redeem.
				return domain.ErrCodeConsumed
			}
			return err
		}

		codeID := code.ID
		session, err = domain.NewSession(
			idx.New().String(), code.UserID, code.ClientID,
			code.Scopes, codeChallenge, method, &codeID, s.expiry(now))
		if err != nil {
			return err
		}
		return tx.Sessions().CreateSession(ctx, *session)
	})
	if err != nil {
		return domain.Session{}, err
	}

	s.finish(ctx, session)
	return *session, nil
}

// CreatePasswordSession mints a session directly for an already-verified
// password factor.
func (s *SessionsService) CreatePasswordSession(ctx context.Context, userID, clientID string, scopes []string, codeChallenge string) (domain.Session, error) {
	return s.createDirect(ctx, userID, clientID, scopes, codeChallenge, domain.MethodPassword)
}

// CreateMFASession mints a session carrying multi-factor assurance. The
// caller must have verified the second factor first.
func (s *SessionsService) CreateMFASession(ctx context.Context, userID, clientID string, scopes []string, codeChallenge string) (domain.Session, error) {
	return s.createDirect(ctx, userID, clientID, scopes, codeChallenge, domain.MethodMFA)
}

// CreateSocialSession mints a session for a verified social identity.
func (s *SessionsService) CreateSocialSession(ctx context.Context, userID, clientID string, scopes []string, codeChallenge string, method domain.AuthenticationMethod) (domain.Session, error) {
	if method.AssuranceLevel() != domain.AssuranceSingleFactor || method == domain.MethodPassword {
		return domain.Session{}, fmt.Errorf("method %q is not a social method: %w", method, domain.ErrInvalidArgument)
	}
	return s.createDirect(ctx, userID, clientID, scopes, codeChallenge, method)
}

func (s *SessionsService) createDirect(ctx context.Context, userID, clientID string, scopes []string, codeChallenge string, method domain.AuthenticationMethod) (domain.Session, error) {
	session, err := domain.NewSession(
		idx.New().String(), userID, clientID,
		scopes, codeChallenge, method, nil, s.expiry(time.Now().UTC()))
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.Store.Sessions().CreateSession(ctx, *session); err != nil {
		return domain.Session{}, err
	}

	s.finish(ctx, session)
	return *session, nil
}

// GetSession fetches a session by id.
func (s *SessionsService) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return session, err
}

// ListUserSessions returns all of a user's sessions, newest first. Revoked
// sessions are included; records are never deleted.
func (s *SessionsService) ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListUserSessions(ctx, userID)
}

// Revoke expires the session now.
func (s *SessionsService) Revoke(ctx context.Context, sessionID string) error {
	return s.RevokeAt(ctx, sessionID, time.Now().UTC())
}

// RevokeAt expires the session at the given time. Revoking an already
// revoked session is not an error; the later write wins.
func (s *SessionsService) RevokeAt(ctx context.Context, sessionID string, at time.Time) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	session.RevokeAt(at)
	if err := s.Store.Sessions().SaveSession(ctx, session); err != nil {
		return err
	}

	slogx.FromContext(ctx).InfoContext(ctx, "session revoked",
		slog.String("session_id", sessionID))
	s.Dispatcher.DispatchAll(ctx, session.Release())
	return nil
}

// Validate runs the full gate chain against a stored session. An unknown
// session id fails the lookup gate with domain.ErrNotFound before any other
// gate is considered.
func (s *SessionsService) Validate(ctx context.Context, sessionID string, v domain.SessionValidation) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return domain.ValidateSession(&session, v, time.Now().UTC())
}

func (s *SessionsService) finish(ctx context.Context, session *domain.Session) {
	slogx.FromContext(ctx).InfoContext(ctx, "session created",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
		slog.String("method", session.Method.String()))
	s.Dispatcher.DispatchAll(ctx, session.Release())
}
