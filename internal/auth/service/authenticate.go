package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/pkg/cryptox"
	"github.com/castellan/castellan/pkg/slogx"
)

// ErrInvalidCredentials deliberately covers both unknown-username and
// wrong-password so callers cannot probe which accounts exist.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthenticateCommand carries a password login attempt.
type AuthenticateCommand struct {
	Username      string
	Password      string
	ClientID      string
	Scopes        []string
	CodeChallenge string
}

func (c AuthenticateCommand) String() string {
	return fmt.Sprintf("AuthenticateCommand{Username:%s ClientID:%s Password:[redacted]}", c.Username, c.ClientID)
}

// AuthenticateResult is returned on a successful login: the opaque code the
// caller can later exchange, plus the session minted alongside it.
type AuthenticateResult struct {
	Code      string
	SessionID string
	UserID    string
}

// AuthService performs password authentication: verify the credential, mint
// a single-use authentication code, and create the session that consumes it.
type AuthService struct {
	Store    store.Store
	Hasher   cryptox.Hasher
	Issuer   *CodeIssuer
	Sessions *SessionsService
}

// Authenticate verifies the username/password pair. Inactive accounts are
// rejected with the same opaque error as bad credentials.
func (s *AuthService) Authenticate(ctx context.Context, cmd AuthenticateCommand) (AuthenticateResult, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, cmd.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a bcrypt comparison anyway to keep timing flat.
			s.Hasher.Verify(cmd.Password, "$2a$12$invalidsaltinvalidsaltinvalidsalthash")
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, err
	}

	if !s.Hasher.Verify(cmd.Password, user.Credential.PasswordHash) {
		log.WarnContext(ctx, "failed login attempt", slog.String("user_id", user.ID))
		return AuthenticateResult{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		log.WarnContext(ctx, "login attempt on inactive account", slog.String("user_id", user.ID))
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	issued, err := s.Issuer.Issue(ctx, user.ID, cmd.ClientID, cmd.Scopes, cmd.CodeChallenge)
	if err != nil {
		return AuthenticateResult{}, err
	}

	session, err := s.Sessions.CreateSessionFromCode(ctx, issued.Code, cmd.CodeChallenge, domain.MethodPassword)
	if err != nil {
		return AuthenticateResult{}, err
	}

	log.InfoContext(ctx, "user authenticated",
		slog.String("user_id", user.ID),
		slog.String("session_id", session.ID))

	return AuthenticateResult{
		Code:      issued.Code,
		SessionID: session.ID,
		UserID:    user.ID,
	}, nil
}
