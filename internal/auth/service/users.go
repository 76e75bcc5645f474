package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/events"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/pkg/cryptox"
	"github.com/castellan/castellan/pkg/idx"
)

// List bounds. Requests outside these are clamped, not rejected.
const (
	ListLimitDefault = 20
	ListLimitMax     = 100
)

var validSortColumns = map[string]struct{}{
	"id": {}, "email": {}, "username": {}, "created_at": {}, "updated_at": {},
}

// ListUsersQuery is the caller-facing pagination request.
type ListUsersQuery struct {
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// UserService owns user account administration: listing, state flips, email
// and password changes, and role assignment.
type UserService struct {
	Store      store.Store
	Hasher     cryptox.Hasher
	Dispatcher *events.Dispatcher
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return user, err
}

// ListUsers normalizes the query (defaults, clamps, column whitelist) and
// returns a page of users.
func (s *UserService) ListUsers(ctx context.Context, q ListUsersQuery) ([]domain.User, error) {
	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	if _, ok := validSortColumns[q.SortBy]; !ok {
		return nil, fmt.Errorf("sort column %q: %w", q.SortBy, domain.ErrInvalidArgument)
	}
	if q.SortOrder != "desc" {
		q.SortOrder = "asc"
	}
	if q.Limit <= 0 {
		q.Limit = ListLimitDefault
	}
	if q.Limit > ListLimitMax {
		q.Limit = ListLimitMax
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	return s.Store.Users().ListUsers(ctx, store.ListUsersParams{
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
}

func (s *UserService) Activate(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		u.Activate()
		return nil
	})
}

func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		u.Deactivate()
		return nil
	})
}

func (s *UserService) Verify(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		u.Verify()
		return nil
	})
}

func (s *UserService) Unverify(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		u.Unverify()
		return nil
	})
}

// ChangeEmail checks the new address is not taken by another account before
// handing off to the aggregate.
func (s *UserService) ChangeEmail(ctx context.Context, userID, newEmail string) error {
	existing, err := s.Store.Users().GetUserByEmail(ctx, newEmail)
	if err == nil && existing.ID != userID {
		return fmt.Errorf("email %q: %w", newEmail, domain.ErrConflict)
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return s.mutate(ctx, userID, func(u *domain.User) error {
		return u.ChangeEmail(newEmail)
	})
}

func (s *UserService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.mutate(ctx, userID, func(u *domain.User) error {
		return u.ChangePassword(hash)
	})
}

// AssignRole links a role to a user. The role must exist.
func (s *UserService) AssignRole(ctx context.Context, userID, roleID string) error {
	if _, err := s.Store.Roles().GetRoleByID(ctx, roleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("role %s: %w", roleID, domain.ErrNotFound)
		}
		return err
	}

	return s.mutate(ctx, userID, func(u *domain.User) error {
		for _, ra := range u.RoleAssignments {
			if ra.RoleID == roleID {
				return fmt.Errorf("role %s: %w", roleID, domain.ErrDuplicate)
			}
		}
		return u.AddRoleAssignment(domain.NewRoleAssignment(idx.New().String(), userID, roleID))
	})
}

// UnassignRole removes the link between a user and a role.
func (s *UserService) UnassignRole(ctx context.Context, userID, roleID string) error {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		for _, ra := range u.RoleAssignments {
			if ra.RoleID == roleID {
				return u.RemoveRoleAssignment(ra.ID)
			}
		}
		return fmt.Errorf("role %s: %w", roleID, domain.ErrNotFound)
	})
}

// mutate is the shared load-modify-save loop. The change runs inside a
// transaction and events are dispatched only after it commits.
func (s *UserService) mutate(ctx context.Context, userID string, fn func(u *domain.User) error) error {
	var released []domain.Event

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
			}
			return err
		}

		if err := fn(&user); err != nil {
			return err
		}
		if err := tx.Users().SaveUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("save user: %w", domain.ErrConflict)
			}
			return err
		}

		released = user.Release()
		return nil
	})
	if err != nil {
		return err
	}

	s.Dispatcher.DispatchAll(ctx, released)
	return nil
}
