package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/auth/domain"
)

func newTestUser(t *testing.T) *domain.User {
	t.Helper()

	cred, err := domain.NewCredential("cred-1", "user-1", "alice", "$2a$12$fakehash")
	require.NoError(t, err)

	u, err := domain.NewUser("user-1", "alice@example.com", cred)
	require.NoError(t, err)
	return u
}

func eventNames(events []domain.Event) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.EventName())
	}
	return names
}

func TestNewUser_Defaults(t *testing.T) {
	u := newTestUser(t)

	assert.True(t, u.IsActive)
	assert.False(t, u.IsVerified)
	assert.Empty(t, u.RoleAssignments)
	assert.Equal(t, []string{"user.registered"}, eventNames(u.Release()))
}

func TestNewUser_RejectsBadEmail(t *testing.T) {
	cred, err := domain.NewCredential("cred-1", "user-1", "alice", "hash")
	require.NoError(t, err)

	for _, email := range []string{"", "no-at-sign", "two@ats@x.com", "no@dot", "sp ace@x.com"} {
		_, err := domain.NewUser("user-1", email, cred)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "email %q", email)
	}
}

func TestNewUser_AcceptsUnusualButValidEmails(t *testing.T) {
	cred, err := domain.NewCredential("cred-1", "user-1", "alice", "hash")
	require.NoError(t, err)

	for _, email := range []string{"a@b.co", "weird+tag@sub.example.com", "UPPER@EXAMPLE.COM"} {
		_, err := domain.NewUser("user-1", email, cred)
		assert.NoError(t, err, "email %q", email)
	}
}

func TestNewCredential_UsernameLength(t *testing.T) {
	_, err := domain.NewCredential("cred-1", "user-1", "ab", "hash")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = domain.NewCredential("cred-1", "user-1", string(make([]byte, 51)), "hash")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUser_StateTransitionsAlwaysEmit(t *testing.T) {
	u := newTestUser(t)
	u.Release()

	// Activating an already-active user still bumps and emits.
	before := u.UpdatedAt
	time.Sleep(time.Millisecond)
	u.Activate()
	assert.True(t, u.IsActive)
	assert.True(t, u.UpdatedAt.After(before))

	u.Deactivate()
	assert.False(t, u.IsActive)

	u.Verify()
	assert.True(t, u.IsVerified)

	u.Unverify()
	assert.False(t, u.IsVerified)

	assert.Equal(t, []string{
		"user.activated", "user.deactivated", "user.verified", "user.unverified",
	}, eventNames(u.Release()))
}

func TestUser_RoleAssignments(t *testing.T) {
	u := newTestUser(t)
	u.Release()

	ra := domain.NewRoleAssignment("assign-1", u.ID, "role-admin")
	require.NoError(t, u.AddRoleAssignment(ra))
	assert.Len(t, u.RoleAssignments, 1)

	err := u.AddRoleAssignment(ra)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Len(t, u.RoleAssignments, 1)

	require.NoError(t, u.RemoveRoleAssignment("assign-1"))
	assert.Empty(t, u.RoleAssignments)

	err = u.RemoveRoleAssignment("assign-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []string{"user.role_assigned", "user.role_unassigned"}, eventNames(u.Release()))
}

func TestUser_ChangeEmail(t *testing.T) {
	u := newTestUser(t)
	u.Release()

	require.NoError(t, u.ChangeEmail("new@example.com"))
	assert.Equal(t, "new@example.com", u.Email)

	events := u.Release()
	require.Len(t, events, 1)
	changed := events[0].(domain.UserEmailChanged)
	assert.Equal(t, "alice@example.com", changed.OldEmail)
	assert.Equal(t, "new@example.com", changed.NewEmail)

	assert.ErrorIs(t, u.ChangeEmail("not-an-email"), domain.ErrInvalidArgument)
	assert.Equal(t, "new@example.com", u.Email)
}

func TestUser_ChangeEmail_UnchangedIsNoOp(t *testing.T) {
	u := newTestUser(t)
	u.Release()
	before := u.UpdatedAt

	time.Sleep(time.Millisecond)
	require.NoError(t, u.ChangeEmail("alice@example.com"))

	assert.Equal(t, before, u.UpdatedAt)
	assert.Empty(t, u.Release())
}

func TestUser_ChangePassword(t *testing.T) {
	u := newTestUser(t)
	u.Release()

	require.NoError(t, u.ChangePassword("$2a$12$newhash"))
	assert.Equal(t, "$2a$12$newhash", u.Credential.PasswordHash)
	assert.Equal(t, []string{"user.password_changed"}, eventNames(u.Release()))

	assert.ErrorIs(t, u.ChangePassword(""), domain.ErrInvalidArgument)
}

func TestUser_MFALifecycle(t *testing.T) {
	u := newTestUser(t)
	u.Release()

	require.NoError(t, u.EnableMFA("JBSWY3DPEHPK3PXP"))
	assert.True(t, u.Credential.MFAEnabled)
	require.NotNil(t, u.Credential.MFASecret)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", *u.Credential.MFASecret)

	// Enabling again keeps the original secret and emits nothing.
	require.NoError(t, u.EnableMFA("OTHERSECRET"))
	assert.Equal(t, "JBSWY3DPEHPK3PXP", *u.Credential.MFASecret)

	u.DisableMFA()
	assert.False(t, u.Credential.MFAEnabled)
	assert.Nil(t, u.Credential.MFASecret)

	assert.Equal(t, []string{"user.mfa_enabled", "user.mfa_disabled"}, eventNames(u.Release()))
}

func TestRecorder_BuffersAreInstanceScoped(t *testing.T) {
	a := newTestUser(t)

	cred, err := domain.NewCredential("cred-2", "user-2", "bob", "hash")
	require.NoError(t, err)
	b, err := domain.NewUser("user-2", "bob@example.com", cred)
	require.NoError(t, err)

	a.Deactivate()

	assert.Len(t, a.Release(), 2) // registered + deactivated
	assert.Len(t, b.Release(), 1) // registered only
	assert.Empty(t, a.Release())  // drained
}

func TestRole_Rename(t *testing.T) {
	r, err := domain.NewRole("role-1", "admin", nil)
	require.NoError(t, err)

	require.NoError(t, r.Rename("  operator  "))
	assert.Equal(t, "operator", r.Name)

	before := r.UpdatedAt
	time.Sleep(time.Millisecond)
	require.NoError(t, r.Rename("operator"))
	assert.Equal(t, before, r.UpdatedAt)

	assert.ErrorIs(t, r.Rename("ab"), domain.ErrInvalidArgument)
}

func TestAuthenticationCode_Consume(t *testing.T) {
	now := time.Now().UTC()
	code := &domain.AuthenticationCode{
		ID:        "code-1",
		UserID:    "user-1",
		ClientID:  "client-1",
		CodeHash:  "hash",
		ExpiresAt: now.Add(5 * time.Minute),
	}

	require.NoError(t, code.Consume(now))
	assert.True(t, code.IsConsumed())

	assert.ErrorIs(t, code.Consume(now), domain.ErrCodeConsumed)

	expired := &domain.AuthenticationCode{ID: "code-2", ExpiresAt: now.Add(-time.Second)}
	assert.ErrorIs(t, expired.Consume(now), domain.ErrCodeExpired)
}
