package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/service"
)

func TestMFA_EnrollActivateAndSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	enrollment, err := h.MFA.EnrollTOTP(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.URL, "otpauth://")

	// A bogus code must not activate.
	err = h.MFA.ActivateTOTP(ctx, user.ID, enrollment.Secret, "000000")
	assert.ErrorIs(t, err, service.ErrInvalidTOTPCode)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.MFA.ActivateTOTP(ctx, user.ID, enrollment.Secret, code))

	loaded, err := h.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Credential.MFAEnabled)

	// Enrolling again while enabled is rejected.
	_, err = h.MFA.EnrollTOTP(ctx, user.ID)
	assert.ErrorIs(t, err, service.ErrMFAAlreadyEnabled)

	// A fresh code mints a multi-factor session.
	code, err = totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	sess, err := h.MFA.CreateMFASession(ctx, user.ID, "client-1", []string{"read"}, testChallenge, code)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodMFA, sess.Method)

	err = h.Sessions.Validate(ctx, sess.ID, domain.SessionValidation{
		UserID: user.ID, RequiredScopes: []string{"read"}, ClientID: "client-1",
		CodeChallenge: testChallenge, Method: domain.MethodMFA,
	})
	assert.NoError(t, err)
}

func TestMFA_SessionRequiresEnabledMFA(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	_, err := h.MFA.CreateMFASession(ctx, user.ID, "c", nil, testChallenge, "123456")
	assert.ErrorIs(t, err, service.ErrMFANotEnabled)
}

func TestMFA_Disable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	// Disabling before enabling is an error.
	assert.ErrorIs(t, h.MFA.DisableTOTP(ctx, user.ID), service.ErrMFANotEnabled)

	enrollment, err := h.MFA.EnrollTOTP(ctx, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.MFA.ActivateTOTP(ctx, user.ID, enrollment.Secret, code))

	require.NoError(t, h.MFA.DisableTOTP(ctx, user.ID))

	loaded, err := h.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Credential.MFAEnabled)
	assert.Nil(t, loaded.Credential.MFASecret)
}
