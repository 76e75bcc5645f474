package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
)

// ErrInvalidAssertion covers every way a gateway assertion can fail
// verification so callers cannot distinguish forged from merely stale.
var ErrInvalidAssertion = errors.New("invalid identity assertion")

// socialAssertionClaims is the payload the social gateway signs after it has
// completed the provider's OAuth dance on our behalf.
type socialAssertionClaims struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// SocialService exchanges a gateway-signed identity assertion for a session.
// The gateway owns the provider handshakes; this service only trusts its
// HS256 signature and maps the asserted email onto a local account.
type SocialService struct {
	Store    store.Store
	Sessions *SessionsService

	// GatewaySecret is the shared HMAC key with the social gateway.
	GatewaySecret []byte
}

// CreateSocialSession verifies the assertion and mints a session with the
// provider's authentication method.
func (s *SocialService) CreateSocialSession(ctx context.Context, assertion, clientID string, scopes []string, codeChallenge string) (domain.Session, error) {
	claims, err := s.verifyAssertion(assertion)
	if err != nil {
		return domain.Session{}, err
	}

	method, err := domain.SocialMethod(claims.Provider)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: unknown provider %q", ErrInvalidAssertion, claims.Provider)
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, fmt.Errorf("no account for asserted email: %w", domain.ErrNotFound)
		}
		return domain.Session{}, err
	}
	if !user.IsActive {
		return domain.Session{}, fmt.Errorf("account inactive: %w", ErrInvalidAssertion)
	}

	return s.Sessions.CreateSocialSession(ctx, user.ID, clientID, scopes, codeChallenge, method)
}

func (s *SocialService) verifyAssertion(assertion string) (*socialAssertionClaims, error) {
	claims := &socialAssertionClaims{}
	token, err := jwt.ParseWithClaims(assertion, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
			}
			return s.GatewaySecret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidAssertion
	}
	if claims.Email == "" || claims.Provider == "" {
		return nil, ErrInvalidAssertion
	}
	return claims, nil
}
