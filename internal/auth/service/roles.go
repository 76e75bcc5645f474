package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/pkg/idx"
)

// RoleService manages the role catalogue. Assignment to users lives on
// UserService since the link is owned by the user aggregate.
type RoleService struct {
	Store store.Store
}

func (s *RoleService) CreateRole(ctx context.Context, name string, description *string) (domain.Role, error) {
	role, err := domain.NewRole(idx.New().String(), name, description)
	if err != nil {
		return domain.Role{}, err
	}

	if err := s.Store.Roles().CreateRole(ctx, *role); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, fmt.Errorf("role name %q: %w", name, domain.ErrConflict)
		}
		return domain.Role{}, err
	}
	return *role, nil
}

func (s *RoleService) GetRoleByID(ctx context.Context, roleID string) (domain.Role, error) {
	role, err := s.Store.Roles().GetRoleByID(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, fmt.Errorf("role %s: %w", roleID, domain.ErrNotFound)
	}
	return role, err
}

func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListRoles(ctx)
}

func (s *RoleService) RenameRole(ctx context.Context, roleID, newName string) error {
	role, err := s.GetRoleByID(ctx, roleID)
	if err != nil {
		return err
	}
	if err := role.Rename(newName); err != nil {
		return err
	}

	if err := s.Store.Roles().SaveRole(ctx, role); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("role name %q: %w", newName, domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *RoleService) ChangeDescription(ctx context.Context, roleID string, description *string) error {
	role, err := s.GetRoleByID(ctx, roleID)
	if err != nil {
		return err
	}

	role.ChangeDescription(description)
	return s.Store.Roles().SaveRole(ctx, role)
}
