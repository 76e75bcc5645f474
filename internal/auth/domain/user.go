package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 50
)

// Deliberately permissive: local@domain.tld shape only. Callers depend on
// this looseness, so do not tighten it without coordinating.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Credential is the authentication sub-entity owned by exactly one User.
// It is created with the user and never deleted independently.
type Credential struct {
	ID           string
	UserID       string
	Username     string
	PasswordHash string
	MFAEnabled   bool
	MFASecret    *string // present iff MFAEnabled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewCredential constructs the credential for a new user.
func NewCredential(id, userID, username, passwordHash string) (Credential, error) {
	if l := len(username); l < UsernameMinLength || l > UsernameMaxLength {
		return Credential{}, fmt.Errorf("username must be %d-%d characters: %w",
			UsernameMinLength, UsernameMaxLength, ErrInvalidArgument)
	}
	if passwordHash == "" {
		return Credential{}, fmt.Errorf("password hash required: %w", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	return Credential{
		ID:           id,
		UserID:       userID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RoleAssignment links a user to a role. The link is owned by the User
// aggregate; the Role itself is managed independently.
type RoleAssignment struct {
	ID        string
	UserID    string
	RoleID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewRoleAssignment(id, userID, roleID string) RoleAssignment {
	now := time.Now().UTC()
	return RoleAssignment{
		ID:        id,
		UserID:    userID,
		RoleID:    roleID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// User is the aggregate root for identity. It owns exactly one Credential
// and the list of role assignments.
type User struct {
	Recorder

	ID              string
	Email           string
	IsActive        bool
	IsVerified      bool
	Credential      Credential
	RoleAssignments []RoleAssignment
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewUser constructs a user with defaults: active, unverified, no roles.
func NewUser(id, email string, credential Credential) (*User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &User{
		ID:         id,
		Email:      email,
		IsActive:   true,
		IsVerified: false,
		Credential: credential,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	u.Record(UserRegistered{UserID: id, Email: email})
	return u, nil
}

// touch bumps the aggregate timestamp. Every mutator calls it explicitly as
// its final step.
func (u *User) touch() { u.UpdatedAt = time.Now().UTC() }

func (u *User) Activate() {
	u.IsActive = true
	u.Record(UserActivated{UserID: u.ID})
	u.touch()
}

func (u *User) Deactivate() {
	u.IsActive = false
	u.Record(UserDeactivated{UserID: u.ID})
	u.touch()
}

func (u *User) Verify() {
	u.IsVerified = true
	u.Record(UserVerified{UserID: u.ID})
	u.touch()
}

func (u *User) Unverify() {
	u.IsVerified = false
	u.Record(UserUnverified{UserID: u.ID})
	u.touch()
}

// AddRoleAssignment fails when the assignment id is already present.
func (u *User) AddRoleAssignment(ra RoleAssignment) error {
	for _, existing := range u.RoleAssignments {
		if existing.ID == ra.ID {
			return fmt.Errorf("role assignment %s: %w", ra.ID, ErrDuplicate)
		}
	}

	u.RoleAssignments = append(u.RoleAssignments, ra)
	u.Record(RoleAssignmentAdded{UserID: u.ID, RoleID: ra.RoleID, AssignmentID: ra.ID})
	u.touch()
	return nil
}

// RemoveRoleAssignment fails when no assignment with the id exists.
func (u *User) RemoveRoleAssignment(assignmentID string) error {
	kept := u.RoleAssignments[:0]
	found := false
	for _, ra := range u.RoleAssignments {
		if ra.ID == assignmentID {
			found = true
			continue
		}
		kept = append(kept, ra)
	}
	if !found {
		return fmt.Errorf("role assignment %s: %w", assignmentID, ErrNotFound)
	}

	u.RoleAssignments = kept
	u.Record(RoleAssignmentRemoved{UserID: u.ID, AssignmentID: assignmentID})
	u.touch()
	return nil
}

// ChangeEmail validates the new address. An unchanged address is a no-op:
// no timestamp bump, no event.
func (u *User) ChangeEmail(newEmail string) error {
	if err := validateEmail(newEmail); err != nil {
		return err
	}
	if u.Email == newEmail {
		return nil
	}

	old := u.Email
	u.Email = newEmail
	u.Record(UserEmailChanged{UserID: u.ID, OldEmail: old, NewEmail: newEmail})
	u.touch()
	return nil
}

// ChangePassword replaces the stored hash.
func (u *User) ChangePassword(newHash string) error {
	if newHash == "" {
		return fmt.Errorf("password hash required: %w", ErrInvalidArgument)
	}

	u.Credential.PasswordHash = newHash
	u.Credential.UpdatedAt = time.Now().UTC()
	u.Record(PasswordChanged{UserID: u.ID})
	u.touch()
	return nil
}

// EnableMFA stores the secret and flips the flag. A no-op when MFA is
// already enabled; the existing secret is preserved.
func (u *User) EnableMFA(secret string) error {
	if u.Credential.MFAEnabled {
		return nil
	}
	if secret == "" {
		return fmt.Errorf("mfa secret required: %w", ErrInvalidArgument)
	}

	u.Credential.MFAEnabled = true
	u.Credential.MFASecret = &secret
	u.Credential.UpdatedAt = time.Now().UTC()
	u.Record(MFAEnabled{UserID: u.ID})
	u.touch()
	return nil
}

// DisableMFA clears the flag and the secret unconditionally.
func (u *User) DisableMFA() {
	u.Credential.MFAEnabled = false
	u.Credential.MFASecret = nil
	u.Credential.UpdatedAt = time.Now().UTC()
	u.Record(MFADisabled{UserID: u.ID})
	u.touch()
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email required: %w", ErrInvalidArgument)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("email format: %w", ErrInvalidArgument)
	}
	return nil
}
