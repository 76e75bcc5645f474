package store

import (
	"context"
	"errors"

	"github.com/castellan/castellan/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Users() Users
	Roles() Roles
	Sessions() Sessions
	AuthenticationCodes() AuthenticationCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. A non-nil error from fn rolls
	// the transaction back; nil commits it. This is the recommended way to
	// run multi-step atomic operations (e.g. code redemption).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// ListUsersParams controls pagination and ordering for ListUsers. The driver
// rejects unknown columns instead of interpolating them.
type ListUsersParams struct {
	SortBy    string // id, email, username, created_at, updated_at
	SortOrder string // asc or desc
	Limit     int
	Offset    int
}

type Users interface {
	// GetUserByID returns the full aggregate: user row, its credential, and
	// its role assignments.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used by uniqueness checks and social login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByUsername is used during password authentication.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// ListUsers returns a page of user aggregates.
	ListUsers(ctx context.Context, params ListUsersParams) ([]domain.User, error)

	// CreateUser inserts the user and its credential (ids provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// SaveUser persists the aggregate: user row, credential, and the role
	// assignment set (inserting new links and deleting removed ones).
	SaveUser(ctx context.Context, u domain.User) error
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)

	// GetRoleByName fetches a role by its unique name.
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// ListRoles returns all roles ordered by name.
	ListRoles(ctx context.Context) ([]domain.Role, error)

	CreateRole(ctx context.Context, r domain.Role) error
	SaveRole(ctx context.Context, r domain.Role) error
}

type Sessions interface {
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// ListUserSessions returns all sessions for a user, newest first.
	// Revoked and expired sessions are included; sessions are never deleted.
	ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error)

	CreateSession(ctx context.Context, s domain.Session) error

	// SaveSession persists mutable fields (expiry) after revocation.
	SaveSession(ctx context.Context, s domain.Session) error
}

type AuthenticationCodes interface {
	// CreateAuthenticationCode stores a freshly minted code. Only the hash of
	// the opaque code is persisted.
	CreateAuthenticationCode(ctx context.Context, c domain.AuthenticationCode) error

	// GetAuthenticationCodeByHash fetches a code by its hashed value when redeeming.
	GetAuthenticationCodeByHash(ctx context.Context, hash string) (domain.AuthenticationCode, error)

	GetAuthenticationCodeByID(ctx context.Context, id string) (domain.AuthenticationCode, error)

	// MarkAuthenticationCodeConsumed stamps consumed_at to prevent re-use.
	MarkAuthenticationCodeConsumed(ctx context.Context, id string) error

	// DeleteExpiredAuthenticationCodes removes codes past their lifetime (housekeeping).
	DeleteExpiredAuthenticationCodes(ctx context.Context) error
}
