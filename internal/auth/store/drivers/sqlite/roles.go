package sqlite

import (
	"context"
	"database/sql"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
)

type rolesRepo struct {
	db dbtx
}

const roleSelect = `SELECT id, name, description, created_at, updated_at FROM roles`

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, roleSelect+` WHERE id = ?`, id))
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, roleSelect+` WHERE name = ?`, name))
}

func (r *rolesRepo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, roleSelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var (
			role        domain.Role
			description sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Description = mapNullStringPtr(description)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.Name, mapOptionalString(role.Description), role.CreatedAt, role.UpdatedAt)
	return mapConflict(err)
}

func (r *rolesRepo) SaveRole(ctx context.Context, role domain.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		role.Name, mapOptionalString(role.Description), role.UpdatedAt, role.ID)
	if err != nil {
		return mapConflict(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanRole(row *sql.Row) (domain.Role, error) {
	var (
		role        domain.Role
		description sql.NullString
	)
	err := row.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.Description = mapNullStringPtr(description)
	return role, nil
}
