package sqlite_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/internal/auth/store/drivers/sqlite"
	"github.com/castellan/castellan/pkg/idx"
)

// testDBCounter gives each test store a distinct shared-cache in-memory
// database. A plain ":memory:" DSN gives every pooled connection its own
// empty database, which breaks queries that need a second connection.
var testDBCounter atomic.Int64

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *sqlite.Store, email, username string) domain.User {
	t.Helper()

	userID := idx.New().String()
	cred, err := domain.NewCredential(idx.New().String(), userID, username, "$2a$12$hash")
	require.NoError(t, err)
	u, err := domain.NewUser(userID, email, cred)
	require.NoError(t, err)
	u.Release()

	require.NoError(t, s.Users().CreateUser(context.Background(), *u))
	return *u
}

func TestUsers_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := seedUser(t, s, "alice@example.com", "alice")

	byID, err := s.Users().GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)
	assert.Equal(t, "alice", byID.Credential.Username)
	assert.True(t, byID.IsActive)
	assert.False(t, byID.IsVerified)

	byEmail, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byUsername, err := s.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUsername.ID)

	_, err = s.Users().GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_UniqueEmailAndUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "alice@example.com", "alice")

	dupEmailID := idx.New().String()
	cred, err := domain.NewCredential(idx.New().String(), dupEmailID, "alice2", "hash")
	require.NoError(t, err)
	dup, err := domain.NewUser(dupEmailID, "alice@example.com", cred)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Users().CreateUser(ctx, *dup), store.ErrAlreadyExists)

	dupNameID := idx.New().String()
	cred2, err := domain.NewCredential(idx.New().String(), dupNameID, "alice", "hash")
	require.NoError(t, err)
	dup2, err := domain.NewUser(dupNameID, "other@example.com", cred2)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Users().CreateUser(ctx, *dup2), store.ErrAlreadyExists)
}

func TestUsers_SaveUserRoundTripsAggregate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")

	role, err := domain.NewRole(idx.New().String(), "admin", nil)
	require.NoError(t, err)
	require.NoError(t, s.Roles().CreateRole(ctx, *role))

	loaded, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)

	loaded.Deactivate()
	require.NoError(t, loaded.ChangeEmail("new@example.com"))
	require.NoError(t, loaded.EnableMFA("JBSWY3DPEHPK3PXP"))
	require.NoError(t, loaded.AddRoleAssignment(
		domain.NewRoleAssignment(idx.New().String(), loaded.ID, role.ID)))
	require.NoError(t, s.Users().SaveUser(ctx, loaded))

	reloaded, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
	assert.Equal(t, "new@example.com", reloaded.Email)
	assert.True(t, reloaded.Credential.MFAEnabled)
	require.NotNil(t, reloaded.Credential.MFASecret)
	require.Len(t, reloaded.RoleAssignments, 1)
	assert.Equal(t, role.ID, reloaded.RoleAssignments[0].RoleID)
}

func TestUsers_ListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "b@example.com", "bravo")
	seedUser(t, s, "a@example.com", "alpha")
	seedUser(t, s, "c@example.com", "charlie")

	users, err := s.Users().ListUsers(ctx, store.ListUsersParams{
		SortBy: "email", SortOrder: "asc", Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@example.com", users[0].Email)
	assert.Equal(t, "b@example.com", users[1].Email)

	page2, err := s.Users().ListUsers(ctx, store.ListUsersParams{
		SortBy: "email", SortOrder: "asc", Limit: 2, Offset: 2,
	})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "c@example.com", page2[0].Email)

	_, err = s.Users().ListUsers(ctx, store.ListUsersParams{
		SortBy: "password_hash; DROP TABLE users", SortOrder: "asc", Limit: 10,
	})
	assert.Error(t, err)
}

func TestRoles_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	desc := "full access"
	role, err := domain.NewRole(idx.New().String(), "admin", &desc)
	require.NoError(t, err)
	require.NoError(t, s.Roles().CreateRole(ctx, *role))

	dup, err := domain.NewRole(idx.New().String(), "admin", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Roles().CreateRole(ctx, *dup), store.ErrAlreadyExists)

	byName, err := s.Roles().GetRoleByName(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, byName.Description)
	assert.Equal(t, "full access", *byName.Description)

	require.NoError(t, byName.Rename("operator"))
	require.NoError(t, s.Roles().SaveRole(ctx, byName))

	roles, err := s.Roles().ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "operator", roles[0].Name)
}

func TestSessions_CreateGetAndRevoke(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")

	challenge := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sess, err := domain.NewSession(idx.New().String(), u.ID, "client-1",
		[]string{"read", "write"}, challenge, domain.MethodPassword, nil, nil)
	require.NoError(t, err)
	sess.Release()
	require.NoError(t, s.Sessions().CreateSession(ctx, *sess))

	loaded, err := s.Sessions().GetSessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, loaded.Scopes)
	assert.Equal(t, domain.MethodPassword, loaded.Method)
	assert.Nil(t, loaded.ExpiresAt)
	assert.True(t, loaded.IsActive(time.Now().UTC()))

	loaded.Revoke(time.Now().UTC())
	require.NoError(t, s.Sessions().SaveSession(ctx, loaded))

	revoked, err := s.Sessions().GetSessionByID(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, revoked.ExpiresAt)
	assert.False(t, revoked.IsActive(time.Now().UTC().Add(time.Second)))

	list, err := s.Sessions().ListUserSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAuthenticationCodes_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")
	now := time.Now().UTC()

	code := domain.AuthenticationCode{
		ID:        idx.New().String(),
		UserID:    u.ID,
		ClientID:  "client-1",
		CodeHash:  "hash-1",
		Scopes:    []string{"read"},
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.AuthenticationCodes().CreateAuthenticationCode(ctx, code))

	loaded, err := s.AuthenticationCodes().GetAuthenticationCodeByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, code.ID, loaded.ID)
	assert.False(t, loaded.IsConsumed())

	require.NoError(t, s.AuthenticationCodes().MarkAuthenticationCodeConsumed(ctx, code.ID))

	// Consuming again loses to the consumed_at guard.
	err = s.AuthenticationCodes().MarkAuthenticationCodeConsumed(ctx, code.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	expired := domain.AuthenticationCode{
		ID:        idx.New().String(),
		UserID:    u.ID,
		ClientID:  "client-1",
		CodeHash:  "hash-2",
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.AuthenticationCodes().CreateAuthenticationCode(ctx, expired))
	require.NoError(t, s.AuthenticationCodes().DeleteExpiredAuthenticationCodes(ctx))

	_, err = s.AuthenticationCodes().GetAuthenticationCodeByHash(ctx, "hash-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthenticationCodes_DeleteExpiredReferencedBySession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")
	now := time.Now().UTC()

	expired := domain.AuthenticationCode{
		ID:        idx.New().String(),
		UserID:    u.ID,
		ClientID:  "client-1",
		CodeHash:  "hash-expired",
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.AuthenticationCodes().CreateAuthenticationCode(ctx, expired))

	challenge := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	codeID := expired.ID
	sess, err := domain.NewSession(idx.New().String(), u.ID, "client-1",
		[]string{"read"}, challenge, domain.MethodPassword, &codeID, nil)
	require.NoError(t, err)
	sess.Release()
	require.NoError(t, s.Sessions().CreateSession(ctx, *sess))

	// Cleanup must not be blocked by the session's reference to the code.
	require.NoError(t, s.AuthenticationCodes().DeleteExpiredAuthenticationCodes(ctx))

	_, err = s.AuthenticationCodes().GetAuthenticationCodeByHash(ctx, "hash-expired")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The session record outlives its code; only the link is cleared.
	loaded, err := s.Sessions().GetSessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.AuthenticationCodeID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com", "alice")

	errBoom := assert.AnError
	err := s.WithTx(ctx, func(tx store.Tx) error {
		loaded, err := tx.Users().GetUserByID(ctx, u.ID)
		if err != nil {
			return err
		}
		loaded.Deactivate()
		if err := tx.Users().SaveUser(ctx, loaded); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	reloaded, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive, "rollback must undo the write")
}
