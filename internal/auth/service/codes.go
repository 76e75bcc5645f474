package service

import (
	"context"
	"fmt"
	"time"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/pkg/cryptox"
	"github.com/castellan/castellan/pkg/idx"
)

// DefaultCodeTTL bounds the window between authenticating and exchanging the
// code for a session.
const DefaultCodeTTL = 5 * time.Minute

// IssuedCode pairs the raw opaque code (returned to the caller once, never
// stored) with the persisted record.
type IssuedCode struct {
	Code   string
	Record domain.AuthenticationCode
}

// CodeIssuer mints short-lived single-use authentication codes. Only the
// SHA-256 fingerprint of the code is handed to the store.
type CodeIssuer struct {
	Store store.Store
	TTL   time.Duration
}

func (i *CodeIssuer) ttl() time.Duration {
	if i.TTL <= 0 {
		return DefaultCodeTTL
	}
	return i.TTL
}

// Issue mints a code for the user+client pair and persists its fingerprint.
func (i *CodeIssuer) Issue(ctx context.Context, userID, clientID string, scopes []string, codeChallenge string) (IssuedCode, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return IssuedCode{}, fmt.Errorf("issue authentication code: %w", err)
	}

	now := time.Now().UTC()
	record := domain.AuthenticationCode{
		ID:            idx.New().String(),
		UserID:        userID,
		ClientID:      clientID,
		CodeHash:      cryptox.FingerprintToken(raw),
		Scopes:        scopes,
		CodeChallenge: codeChallenge,
		ExpiresAt:     now.Add(i.ttl()),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := i.Store.AuthenticationCodes().CreateAuthenticationCode(ctx, record); err != nil {
		return IssuedCode{}, fmt.Errorf("persist authentication code: %w", err)
	}

	return IssuedCode{Code: raw, Record: record}, nil
}

// Lookup resolves a raw code to its stored record by fingerprint.
func (i *CodeIssuer) Lookup(ctx context.Context, rawCode string) (domain.AuthenticationCode, error) {
	return i.Store.AuthenticationCodes().GetAuthenticationCodeByHash(ctx, cryptox.FingerprintToken(rawCode))
}
