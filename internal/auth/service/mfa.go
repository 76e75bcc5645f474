package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/castellan/castellan/internal/auth/domain"
)

var (
	ErrInvalidTOTPCode   = errors.New("invalid TOTP code")
	ErrMFANotEnabled     = errors.New("MFA not enabled for this user")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled for this user")
)

// MFAEnrollment is returned from EnrollTOTP so the client can render a QR
// code. The secret is only ever returned here; afterwards it lives on the
// credential.
type MFAEnrollment struct {
	Secret  string
	URL     string
	Issuer  string
	Account string
}

// MFAService manages TOTP enrollment and verification. Enrollment is two
// phase: EnrollTOTP hands out a secret, ActivateTOTP proves the authenticator
// works before MFA is switched on.
type MFAService struct {
	Users    *UserService
	Sessions *SessionsService
	Issuer   string // Issuer name shown in authenticator apps
}

// EnrollTOTP generates a TOTP secret for the user. MFA is not enabled until
// the user proves possession via ActivateTOTP.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (MFAEnrollment, error) {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return MFAEnrollment{}, err
	}
	if user.Credential.MFAEnabled {
		return MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Credential.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return MFAEnrollment{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	return MFAEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: user.Credential.Username,
	}, nil
}

// ActivateTOTP verifies a code against the enrolled secret and, on success,
// enables MFA on the credential.
func (s *MFAService) ActivateTOTP(ctx context.Context, userID, secret, code string) error {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Credential.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}

	if !totp.Validate(code, secret) {
		return ErrInvalidTOTPCode
	}

	return s.Users.mutate(ctx, userID, func(u *domain.User) error {
		return u.EnableMFA(secret)
	})
}

// DisableTOTP clears MFA for the user.
func (s *MFAService) DisableTOTP(ctx context.Context, userID string) error {
	return s.Users.mutate(ctx, userID, func(u *domain.User) error {
		if !u.Credential.MFAEnabled {
			return ErrMFANotEnabled
		}
		u.DisableMFA()
		return nil
	})
}

// CreateMFASession verifies a fresh TOTP code and mints a session at
// multi-factor assurance.
func (s *MFAService) CreateMFASession(ctx context.Context, userID, clientID string, scopes []string, codeChallenge, code string) (domain.Session, error) {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Session{}, err
	}
	if !user.Credential.MFAEnabled || user.Credential.MFASecret == nil {
		return domain.Session{}, ErrMFANotEnabled
	}

	if !totp.Validate(code, *user.Credential.MFASecret) {
		return domain.Session{}, ErrInvalidTOTPCode
	}

	return s.Sessions.CreateMFASession(ctx, userID, clientID, scopes, codeChallenge)
}
