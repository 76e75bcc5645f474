package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `u.id, u.email, u.is_active, u.is_verified, u.created_at, u.updated_at,
	c.id, c.user_id, c.username, c.password_hash, c.mfa_enabled, c.mfa_secret, c.created_at, c.updated_at`

const userSelect = `SELECT ` + userColumns + `
	FROM users u JOIN credentials c ON c.user_id = u.id`

// Whitelisted sort columns. Anything else is rejected rather than
// interpolated into the query.
var userSortColumns = map[string]string{
	"id":         "u.id",
	"email":      "u.email",
	"username":   "c.username",
	"created_at": "u.created_at",
	"updated_at": "u.updated_at",
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, userSelect+` WHERE u.id = ?`, id)
	return r.hydrate(ctx, row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, userSelect+` WHERE u.email = ?`, email)
	return r.hydrate(ctx, row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, userSelect+` WHERE c.username = ?`, username)
	return r.hydrate(ctx, row)
}

func (r *usersRepo) ListUsers(ctx context.Context, params store.ListUsersParams) ([]domain.User, error) {
	column, ok := userSortColumns[params.SortBy]
	if !ok {
		return nil, fmt.Errorf("sort column %q: %w", params.SortBy, store.ErrNotFound)
	}
	order := "ASC"
	if params.SortOrder == "desc" {
		order = "DESC"
	}

	query := fmt.Sprintf(`%s ORDER BY %s %s LIMIT ? OFFSET ?`, userSelect, column, order)
	rows, err := r.db.QueryContext(ctx, query, params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		assignments, err := r.loadAssignments(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.RoleAssignments = assignments
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, is_active, is_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.IsActive, u.IsVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}

	c := u.Credential
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO credentials (id, user_id, username, password_hash, mfa_enabled, mfa_secret, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Username, c.PasswordHash, c.MFAEnabled, mapOptionalString(c.MFASecret),
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}

	return r.saveAssignments(ctx, u)
}

// SaveUser persists the whole aggregate. The assignment set is reconciled
// by replacement, which keeps the logic simple at the cost of rewriting
// unchanged links.
func (r *usersRepo) SaveUser(ctx context.Context, u domain.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, is_active = ?, is_verified = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.IsActive, u.IsVerified, u.UpdatedAt, u.ID)
	if err != nil {
		return mapConflict(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	c := u.Credential
	_, err = r.db.ExecContext(ctx,
		`UPDATE credentials SET username = ?, password_hash = ?, mfa_enabled = ?, mfa_secret = ?, updated_at = ?
		 WHERE user_id = ?`,
		c.Username, c.PasswordHash, c.MFAEnabled, mapOptionalString(c.MFASecret), c.UpdatedAt, u.ID)
	if err != nil {
		return mapConflict(err)
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM role_assignments WHERE user_id = ?`, u.ID); err != nil {
		return err
	}
	return r.saveAssignments(ctx, u)
}

func (r *usersRepo) saveAssignments(ctx context.Context, u domain.User) error {
	for _, ra := range u.RoleAssignments {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO role_assignments (id, user_id, role_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			ra.ID, ra.UserID, ra.RoleID, ra.CreatedAt, ra.UpdatedAt)
		if err != nil {
			return mapConflict(err)
		}
	}
	return nil
}

func (r *usersRepo) hydrate(ctx context.Context, row *sql.Row) (domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	assignments, err := r.loadAssignments(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	u.RoleAssignments = assignments
	return u, nil
}

func (r *usersRepo) loadAssignments(ctx context.Context, userID string) ([]domain.RoleAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, role_id, created_at, updated_at
		 FROM role_assignments WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []domain.RoleAssignment
	for rows.Next() {
		var ra domain.RoleAssignment
		if err := rows.Scan(&ra.ID, &ra.UserID, &ra.RoleID, &ra.CreatedAt, &ra.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, ra)
	}
	return assignments, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u         domain.User
		c         domain.Credential
		mfaSecret sql.NullString
	)
	err := s.Scan(
		&u.ID, &u.Email, &u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt,
		&c.ID, &c.UserID, &c.Username, &c.PasswordHash, &c.MFAEnabled, &mfaSecret,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	c.MFASecret = mapNullStringPtr(mfaSecret)
	u.Credential = c
	return u, nil
}
