package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/service"
)

func TestRegister_Succeeds(t *testing.T) {
	h := newHarness(t)

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	assert.True(t, user.IsActive)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "hunter2hunter2", user.Credential.PasswordHash, "password must be hashed")
}

func TestRegister_ConflictOnDuplicateEmailOrUsername(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	_, err := h.Register.Register(ctx, service.RegisterCommand{
		Email: "alice@example.com", Username: "alice2", Password: "pw",
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.Register.Register(ctx, service.RegisterCommand{
		Email: "other@example.com", Username: "alice", Password: "pw",
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegister_DispatchesEvent(t *testing.T) {
	h := newHarness(t)

	var got domain.UserRegistered
	h.Dispatcher.Register("user.registered", func(ctx context.Context, e domain.Event) {
		got = e.(domain.UserRegistered)
	})

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestRegisterCommand_StringRedactsPassword(t *testing.T) {
	cmd := service.RegisterCommand{Email: "a@b.co", Username: "alice", Password: "supersecret"}
	assert.NotContains(t, cmd.String(), "supersecret")
}

func TestAuthenticate_FullFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	result, err := h.Auth.Authenticate(ctx, service.AuthenticateCommand{
		Username:      "alice",
		Password:      "hunter2hunter2",
		ClientID:      "client-1",
		Scopes:        []string{"read", "write"},
		CodeChallenge: testChallenge,
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.UserID)
	assert.NotEmpty(t, result.Code)
	assert.GreaterOrEqual(t, len(result.Code), 43, "code must carry at least 256 bits")

	// The session bound to the code is immediately usable.
	err = h.Sessions.Validate(ctx, result.SessionID, domain.SessionValidation{
		UserID:         user.ID,
		RequiredScopes: []string{"read"},
		ClientID:       "client-1",
		CodeChallenge:  testChallenge,
		Method:         domain.MethodPassword,
	})
	assert.NoError(t, err)
}

func TestAuthenticate_RejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	_, err := h.Auth.Authenticate(ctx, service.AuthenticateCommand{
		Username: "alice", Password: "wrong", ClientID: "c", CodeChallenge: testChallenge,
	})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Unknown usernames fail with the same error.
	_, err = h.Auth.Authenticate(ctx, service.AuthenticateCommand{
		Username: "nobody", Password: "whatever", ClientID: "c", CodeChallenge: testChallenge,
	})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthenticate_RejectsInactiveAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")
	require.NoError(t, h.Users.Deactivate(ctx, user.ID))

	_, err := h.Auth.Authenticate(ctx, service.AuthenticateCommand{
		Username: "alice", Password: "hunter2hunter2", ClientID: "c", CodeChallenge: testChallenge,
	})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestCodeIssuer_CodesAreSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	issued, err := h.Issuer.Issue(ctx, user.ID, "client-1", []string{"read"}, testChallenge)
	require.NoError(t, err)

	_, err = h.Sessions.CreateSessionFromCode(ctx, issued.Code, testChallenge, domain.MethodPassword)
	require.NoError(t, err)

	// Redeeming the same code again must fail.
	_, err = h.Sessions.CreateSessionFromCode(ctx, issued.Code, testChallenge, domain.MethodPassword)
	assert.ErrorIs(t, err, domain.ErrCodeConsumed)
}

func TestCodeIssuer_ChallengeMustMatchMintedChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	issued, err := h.Issuer.Issue(ctx, user.ID, "client-1", []string{"read"}, testChallenge)
	require.NoError(t, err)

	otherChallenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	_, err = h.Sessions.CreateSessionFromCode(ctx, issued.Code, otherChallenge, domain.MethodPassword)
	assert.ErrorIs(t, err, domain.ErrChallengeMismatch)

	// The failed attempt must not burn the code.
	_, err = h.Sessions.CreateSessionFromCode(ctx, issued.Code, testChallenge, domain.MethodPassword)
	assert.NoError(t, err)
}

func TestCodeIssuer_ExpiredCodeRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t, "alice@example.com", "alice", "hunter2hunter2")

	h.Issuer.TTL = -time.Minute // already expired at mint
	issued, err := h.Issuer.Issue(ctx, user.ID, "client-1", nil, testChallenge)
	require.NoError(t, err)

	_, err = h.Sessions.CreateSessionFromCode(ctx, issued.Code, testChallenge, domain.MethodPassword)
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestCodeIssuer_UnknownCodeRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.Sessions.CreateSessionFromCode(context.Background(),
		"not-a-real-code", testChallenge, domain.MethodPassword)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
