package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	RoleNameMinLength = 3
	RoleNameMaxLength = 50
)

// Role is managed independently of users; role assignments link the two.
type Role struct {
	Recorder

	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewRole(id, name string, description *string) (*Role, error) {
	if err := validateRoleName(name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Role{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *Role) touch() { r.UpdatedAt = time.Now().UTC() }

// Rename trims the new name; renaming to the current name is a no-op.
func (r *Role) Rename(newName string) error {
	trimmed := strings.TrimSpace(newName)
	if err := validateRoleName(trimmed); err != nil {
		return err
	}
	if r.Name == trimmed {
		return nil
	}

	r.Name = trimmed
	r.touch()
	return nil
}

func (r *Role) ChangeDescription(description *string) {
	r.Description = description
	r.touch()
}

func validateRoleName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("role name required: %w", ErrInvalidArgument)
	}
	if l := len(name); l < RoleNameMinLength || l > RoleNameMaxLength {
		return fmt.Errorf("role name must be %d-%d characters: %w",
			RoleNameMinLength, RoleNameMaxLength, ErrInvalidArgument)
	}
	return nil
}
