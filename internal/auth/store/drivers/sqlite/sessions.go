package sqlite

import (
	"context"
	"database/sql"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionSelect = `SELECT id, user_id, client_id, scopes, code_challenge, expires_at, method,
	authentication_code_id, created_at, updated_at FROM sessions`

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, sessionSelect+` WHERE id = ?`, id)

	var (
		s          domain.Session
		scopes     string
		method     string
		expiresAt  sql.NullTime
		authCodeID sql.NullString
	)
	err := row.Scan(&s.ID, &s.UserID, &s.ClientID, &scopes, &s.CodeChallenge,
		&expiresAt, &method, &authCodeID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	s.Scopes = splitScopes(scopes)
	s.Method = domain.AuthenticationMethod(method)
	s.ExpiresAt = mapNullTimePtr(expiresAt)
	s.AuthenticationCodeID = mapNullStringPtr(authCodeID)
	return s, nil
}

func (r *sessionsRepo) ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		sessionSelect+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var (
			s          domain.Session
			scopes     string
			method     string
			expiresAt  sql.NullTime
			authCodeID sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.ClientID, &scopes, &s.CodeChallenge,
			&expiresAt, &method, &authCodeID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Scopes = splitScopes(scopes)
		s.Method = domain.AuthenticationMethod(method)
		s.ExpiresAt = mapNullTimePtr(expiresAt)
		s.AuthenticationCodeID = mapNullStringPtr(authCodeID)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, client_id, scopes, code_challenge, expires_at, method,
			authentication_code_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.ClientID, joinScopes(s.Scopes), s.CodeChallenge,
		mapOptionalTime(s.ExpiresAt), s.Method.String(),
		mapOptionalString(s.AuthenticationCodeID), s.CreatedAt, s.UpdatedAt)
	return mapConflict(err)
}

func (r *sessionsRepo) SaveSession(ctx context.Context, s domain.Session) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ?, updated_at = ? WHERE id = ?`,
		mapOptionalTime(s.ExpiresAt), s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
